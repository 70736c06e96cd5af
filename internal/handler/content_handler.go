package handler

import (
	"errors"
	"fmt"
	"mime"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/utils"
)

const contentFormField = "file"

// ContentHandler manages chapters and streams their files.
type ContentHandler struct {
	content service.ContentService
	logger  zerolog.Logger
}

// NewContentHandler constructs the content handler.
func NewContentHandler(content service.ContentService, logger zerolog.Logger) *ContentHandler {
	return &ContentHandler{
		content: content,
		logger:  logger.With().Str("component", "content_handler").Logger(),
	}
}

// RegisterStudent binds chapter browsing and streaming on a StudentGate group.
func (h *ContentHandler) RegisterStudent(router fiber.Router) {
	router.Get("/chapters", h.studentChapters)
	router.Get("/contents/:id/stream", h.stream)
}

// RegisterAdmin binds chapter management on an AdminGate group.
func (h *ContentHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/chapters", h.classChapters)
	router.Post("/chapters", h.createChapter)
	router.Put("/chapters/:id", h.updateChapter)
	router.Delete("/chapters/:id", h.deleteChapter)
	router.Post("/chapters/:id/contents", h.upload)
	router.Delete("/contents/:id", h.deleteContent)
}

func (h *ContentHandler) studentChapters(c *fiber.Ctx) error {
	chapters, err := h.content.ListChaptersForStudent(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list chapters")
	}
	return utils.SendSuccess(c, "chapters retrieved", chapters)
}

func (h *ContentHandler) classChapters(c *fiber.Ctx) error {
	classID, err := parseQueryInt(c, "classId")
	if err != nil || classID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "classId query parameter required")
	}

	chapters, err := h.content.ListChaptersByClass(c.UserContext(), uint(classID))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list chapters")
	}
	return utils.SendSuccess(c, "chapters retrieved", chapters)
}

func (h *ContentHandler) createChapter(c *fiber.Ctx) error {
	var payload dto.ChapterCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	chapter, err := h.content.CreateChapter(c.UserContext(), activityActorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create chapter")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "chapter created", chapter)
}

func (h *ContentHandler) updateChapter(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chapter id")
	}

	var payload dto.ChapterUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	chapter, err := h.content.UpdateChapter(c.UserContext(), activityActorFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update chapter")
	}
	return utils.SendSuccess(c, "chapter updated", chapter)
}

func (h *ContentHandler) deleteChapter(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chapter id")
	}

	if err := h.content.DeleteChapter(c.UserContext(), activityActorFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete chapter")
	}
	return utils.SendSuccess(c, "chapter deleted", nil)
}

func (h *ContentHandler) upload(c *fiber.Ctx) error {
	chapterID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chapter id")
	}

	var form dto.ContentUploadRequest
	if err := c.BodyParser(&form); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	file, err := c.FormFile(contentFormField)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file required")
	}

	reader, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}
	defer reader.Close()

	item, err := h.content.Upload(c.UserContext(), activityActorFromContext(c), service.ContentUpload{
		ChapterID: chapterID,
		Request:   form,
		FileName:  file.Filename,
		Size:      file.Size,
		Body:      reader,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to upload content")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "content uploaded", item)
}

func (h *ContentHandler) deleteContent(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid content id")
	}

	if err := h.content.DeleteContent(c.UserContext(), activityActorFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete content")
	}
	return utils.SendSuccess(c, "content deleted", nil)
}

func (h *ContentHandler) stream(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid content id")
	}

	stream, err := h.content.OpenStream(c.UserContext(), userIDFromContext(c), id, c.Get(fiber.HeaderRange))
	if err != nil {
		if errors.Is(err, service.ErrRangeNotSatisfiable) {
			c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", stream.Size))
			return utils.SendError(c, fiber.StatusRequestedRangeNotSatisfiable, "requested range not satisfiable")
		}
		return sendServiceError(c, h.logger, err, "failed to open content")
	}

	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderContentType, stream.ContentType)
	if stream.FileName != "" {
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": stream.FileName}))
	}

	status := fiber.StatusOK
	if stream.Partial {
		status = fiber.StatusPartialContent
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", stream.Start, stream.End, stream.Size))
	}

	length := stream.Size
	if stream.Partial {
		length = stream.Length()
	}

	c.Status(status)
	// fasthttp closes the body once it has been written.
	c.Context().SetBodyStream(stream.Body, int(length))
	return nil
}
