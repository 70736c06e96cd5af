package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
	"github.com/noah-isme/coaching-api/pkg/storage"
)

const sniffLength = 3072

var (
	// ErrChapterNotFound indicates the chapter does not exist.
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrContentNotFound indicates the content item does not exist or is not visible to the student.
	ErrContentNotFound = errors.New("content not found")
	// ErrRangeNotSatisfiable indicates a Range header outside the object.
	ErrRangeNotSatisfiable = errors.New("requested range not satisfiable")
)

// ObjectStorage stores uploaded notes and videos.
type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
	GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// ContentUpload is a file received for a chapter.
type ContentUpload struct {
	ChapterID uint
	Request   dto.ContentUploadRequest
	FileName  string
	Size      int64
	Body      io.Reader
}

// ContentStream is an opened object, possibly restricted to a byte range.
type ContentStream struct {
	Body        io.ReadCloser
	ContentType string
	FileName    string
	Size        int64
	Start       int64
	End         int64
	Partial     bool
}

// Length is the number of bytes the stream will yield.
func (s ContentStream) Length() int64 {
	return s.End - s.Start + 1
}

// ContentService manages chapters and their uploaded files.
type ContentService interface {
	ListChaptersForStudent(ctx context.Context, studentID uint) ([]dto.ChapterResponse, error)
	ListChaptersByClass(ctx context.Context, classID uint) ([]dto.ChapterResponse, error)
	CreateChapter(ctx context.Context, actor ActivityActor, req dto.ChapterCreateRequest) (dto.ChapterResponse, error)
	UpdateChapter(ctx context.Context, actor ActivityActor, id uint, req dto.ChapterUpdateRequest) (dto.ChapterResponse, error)
	DeleteChapter(ctx context.Context, actor ActivityActor, id uint) error
	Upload(ctx context.Context, actor ActivityActor, upload ContentUpload) (dto.ContentResponse, error)
	DeleteContent(ctx context.Context, actor ActivityActor, id uint) error
	OpenStream(ctx context.Context, studentID, contentID uint, rangeHeader string) (ContentStream, error)
}

type contentService struct {
	content   repository.ContentRepository
	classes   repository.ClassRepository
	students  repository.StudentRepository
	storage   ObjectStorage
	activity  ActivityTracker
	audit     ActivityRecorder
	maxBytes  int64
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewContentService constructs the content service. A nil storage rejects uploads and streams.
func NewContentService(content repository.ContentRepository, classes repository.ClassRepository, students repository.StudentRepository, store ObjectStorage, activity ActivityTracker, audit ActivityRecorder, maxBytes int64, validate *validator.Validate, logger zerolog.Logger) ContentService {
	if maxBytes <= 0 {
		maxBytes = 500 * 1024 * 1024
	}
	return &contentService{
		content:   content,
		classes:   classes,
		students:  students,
		storage:   store,
		activity:  activity,
		audit:     audit,
		maxBytes:  maxBytes,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "content_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/coaching-api/internal/service/content"),
	}
}

func (s *contentService) ListChaptersForStudent(ctx context.Context, studentID uint) ([]dto.ChapterResponse, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	if student.ClassID == nil {
		return []dto.ChapterResponse{}, nil
	}
	return s.listChapters(ctx, *student.ClassID)
}

func (s *contentService) ListChaptersByClass(ctx context.Context, classID uint) ([]dto.ChapterResponse, error) {
	if _, err := s.classes.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return s.listChapters(ctx, classID)
}

func (s *contentService) listChapters(ctx context.Context, classID uint) ([]dto.ChapterResponse, error) {
	chapters, err := s.content.ListChaptersByClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ChapterResponse, 0, len(chapters))
	for _, chapter := range chapters {
		responses = append(responses, dto.NewChapterResponse(chapter))
	}
	return responses, nil
}

func (s *contentService) CreateChapter(ctx context.Context, actor ActivityActor, req dto.ChapterCreateRequest) (dto.ChapterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ChapterResponse{}, err
	}

	if _, err := s.classes.GetByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChapterResponse{}, ErrClassNotFound
		}
		return dto.ChapterResponse{}, err
	}

	chapter := models.Chapter{
		ClassID:  req.ClassID,
		Subject:  strings.TrimSpace(req.Subject),
		Title:    strings.TrimSpace(req.Title),
		Position: req.Position,
	}
	if err := s.content.CreateChapter(ctx, &chapter); err != nil {
		return dto.ChapterResponse{}, err
	}

	recordActivity(ctx, s.audit, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "chapter.created",
		EntityType: "chapter",
		EntityID:   uintPtr(chapter.ID),
		Metadata:   map[string]interface{}{"class_id": chapter.ClassID, "title": chapter.Title},
	})

	return dto.NewChapterResponse(chapter), nil
}

func (s *contentService) UpdateChapter(ctx context.Context, actor ActivityActor, id uint, req dto.ChapterUpdateRequest) (dto.ChapterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ChapterResponse{}, err
	}

	updates := map[string]interface{}{}
	if req.Subject != nil {
		updates["subject"] = strings.TrimSpace(*req.Subject)
	}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}

	var (
		chapter models.Chapter
		err     error
	)
	if len(updates) == 0 {
		chapter, err = s.content.GetChapter(ctx, id)
	} else {
		chapter, err = s.content.UpdateChapter(ctx, id, updates)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChapterResponse{}, ErrChapterNotFound
		}
		return dto.ChapterResponse{}, err
	}

	if len(updates) > 0 {
		recordActivity(ctx, s.audit, s.logger, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "chapter.updated",
			EntityType: "chapter",
			EntityID:   uintPtr(chapter.ID),
			Metadata:   updates,
		})
	}

	return dto.NewChapterResponse(chapter), nil
}

func (s *contentService) DeleteChapter(ctx context.Context, actor ActivityActor, id uint) error {
	removed, err := s.content.DeleteChapter(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChapterNotFound
		}
		return err
	}

	for _, item := range removed {
		s.removeObject(ctx, item.ObjectKey)
	}

	recordActivity(ctx, s.audit, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "chapter.deleted",
		EntityType: "chapter",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"contents_removed": len(removed)},
	})
	return nil
}

func (s *contentService) Upload(ctx context.Context, actor ActivityActor, upload ContentUpload) (dto.ContentResponse, error) {
	if err := s.validator.Struct(upload.Request); err != nil {
		return dto.ContentResponse{}, err
	}
	if s.storage == nil {
		return dto.ContentResponse{}, ErrStorageUnavailable
	}
	if upload.Size <= 0 || upload.Body == nil {
		return dto.ContentResponse{}, fmt.Errorf("%w: empty file", ErrUnsupportedFileType)
	}
	if upload.Size > s.maxBytes {
		return dto.ContentResponse{}, ErrFileTooLarge
	}

	ctx, span := s.tracer.Start(ctx, "content.upload", trace.WithAttributes(
		attribute.Int("chapter.id", int(upload.ChapterID)),
		attribute.String("content.kind", upload.Request.Kind),
		attribute.Int64("content.size", upload.Size),
	))
	defer span.End()

	if _, err := s.content.GetChapter(ctx, upload.ChapterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ContentResponse{}, ErrChapterNotFound
		}
		return dto.ContentResponse{}, err
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return dto.ContentResponse{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	kind := models.ContentKind(upload.Request.Kind)
	detected := mimetype.Detect(head)
	if !allowedContentType(kind, detected) {
		return dto.ContentResponse{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, detected.String())
	}

	fileName := filepath.Base(strings.TrimSpace(upload.FileName))
	if fileName == "." || fileName == string(filepath.Separator) {
		fileName = ""
	}
	key := fmt.Sprintf("chapters/%d/%s/%s%s", upload.ChapterID, kind, uuid.NewString(), detected.Extension())

	body := io.MultiReader(bytes.NewReader(head), upload.Body)
	if err := s.storage.Put(ctx, key, body, upload.Size, detected.String()); err != nil {
		span.RecordError(err)
		return dto.ContentResponse{}, err
	}

	item := models.ContentItem{
		ChapterID:   upload.ChapterID,
		Kind:        kind,
		Title:       strings.TrimSpace(upload.Request.Title),
		Description: strings.TrimSpace(s.sanitizer.Sanitize(upload.Request.Description)),
		ObjectKey:   key,
		FileName:    fileName,
		MimeType:    detected.String(),
		SizeBytes:   upload.Size,
		UploadedBy:  actor.ID,
	}
	if err := s.content.CreateContent(ctx, &item); err != nil {
		span.RecordError(err)
		s.removeObject(ctx, key)
		return dto.ContentResponse{}, err
	}

	recordActivity(ctx, s.audit, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "content.uploaded",
		EntityType: "content",
		EntityID:   uintPtr(item.ID),
		Metadata:   map[string]interface{}{"chapter_id": item.ChapterID, "kind": string(item.Kind), "size": item.SizeBytes},
	})

	return dto.NewContentResponse(item), nil
}

func (s *contentService) DeleteContent(ctx context.Context, actor ActivityActor, id uint) error {
	item, err := s.content.DeleteContent(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrContentNotFound
		}
		return err
	}

	s.removeObject(ctx, item.ObjectKey)

	recordActivity(ctx, s.audit, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "content.deleted",
		EntityType: "content",
		EntityID:   uintPtr(item.ID),
		Metadata:   map[string]interface{}{"chapter_id": item.ChapterID},
	})
	return nil
}

func (s *contentService) OpenStream(ctx context.Context, studentID, contentID uint, rangeHeader string) (ContentStream, error) {
	item, chapter, err := s.content.GetContent(ctx, contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ContentStream{}, ErrContentNotFound
		}
		return ContentStream{}, err
	}

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ContentStream{}, ErrStudentNotFound
		}
		return ContentStream{}, err
	}
	if student.ClassID == nil || *student.ClassID != chapter.ClassID {
		return ContentStream{}, ErrContentNotFound
	}

	if s.storage == nil {
		return ContentStream{}, ErrStorageUnavailable
	}

	info, err := s.storage.Stat(ctx, item.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ContentStream{}, ErrContentNotFound
		}
		return ContentStream{}, err
	}

	stream := ContentStream{
		ContentType: item.MimeType,
		FileName:    item.FileName,
		Size:        info.Size,
		Start:       0,
		End:         info.Size - 1,
	}
	if stream.ContentType == "" {
		stream.ContentType = info.ContentType
	}

	start, end, partial, err := parseByteRange(rangeHeader, info.Size)
	if err != nil {
		return stream, err
	}
	if partial {
		stream.Start, stream.End, stream.Partial = start, end, true
	}

	length := int64(-1)
	if stream.Partial {
		length = stream.Length()
	}

	var body io.ReadCloser
	if info.Size == 0 {
		body = io.NopCloser(bytes.NewReader(nil))
	} else {
		body, err = s.storage.GetRange(ctx, item.ObjectKey, stream.Start, length)
	}
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ContentStream{}, ErrContentNotFound
		}
		return ContentStream{}, err
	}
	stream.Body = body

	if item.Kind == models.ContentKindNote && stream.Start == 0 && s.activity != nil {
		if _, err := s.activity.RecordActivity(ctx, studentID, ActivityNoteDownloaded); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to record note download")
		}
	}

	return stream, nil
}

func (s *contentService) removeObject(ctx context.Context, key string) {
	if s.storage == nil || key == "" {
		return
	}
	if err := s.storage.Remove(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to remove stored object")
	}
}

func allowedContentType(kind models.ContentKind, detected *mimetype.MIME) bool {
	switch kind {
	case models.ContentKindNote:
		return detected.Is("application/pdf") || strings.HasPrefix(detected.String(), "image/")
	case models.ContentKindVideo:
		return strings.HasPrefix(detected.String(), "video/")
	default:
		return false
	}
}

// parseByteRange interprets a single "bytes=" range against an object size.
// Headers it cannot interpret, including multi-range requests, yield the whole object.
func parseByteRange(header string, size int64) (int64, int64, bool, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, 0, false, nil
	}

	byteRange, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(byteRange, ",") {
		return 0, 0, false, nil
	}

	startText, endText, ok := strings.Cut(strings.TrimSpace(byteRange), "-")
	if !ok {
		return 0, 0, false, nil
	}
	startText = strings.TrimSpace(startText)
	endText = strings.TrimSpace(endText)

	if size <= 0 {
		return 0, 0, false, ErrRangeNotSatisfiable
	}

	if startText == "" {
		suffix, err := strconv.ParseInt(endText, 10, 64)
		if err != nil || suffix < 0 {
			return 0, 0, false, nil
		}
		if suffix == 0 {
			return 0, 0, false, ErrRangeNotSatisfiable
		}
		if suffix > size {
			suffix = size
		}
		return size - suffix, size - 1, true, nil
	}

	start, err := strconv.ParseInt(startText, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false, nil
	}
	if start >= size {
		return 0, 0, false, ErrRangeNotSatisfiable
	}

	end := size - 1
	if endText != "" {
		parsed, err := strconv.ParseInt(endText, 10, 64)
		if err != nil || parsed < start {
			return 0, 0, false, nil
		}
		if parsed < end {
			end = parsed
		}
	}

	return start, end, true, nil
}
