package cloudinary

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const avatarTransformation = "c_fill,g_face,w_256,h_256"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// AvatarService stores student profile pictures on Cloudinary.
type AvatarService struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary avatar service.
func New(cfg Config, logger zerolog.Logger) (*AvatarService, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	folder := strings.Trim(cfg.Folder, "/")
	if folder == "" {
		folder = "coaching"
	}

	return &AvatarService{
		client: cld,
		folder: folder + "/avatars",
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// UploadAvatar replaces the student's avatar and returns its secure URL.
// Each student has one public id, so a new upload overwrites the previous picture.
func (s *AvatarService) UploadAvatar(ctx context.Context, studentID uint, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       avatarPublicID(studentID),
		ResourceType:   "image",
		Overwrite:      api.Bool(true),
		Invalidate:     api.Bool(true),
		Transformation: avatarTransformation,
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected avatar: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Uint("student_id", studentID).Msg("avatar uploaded to cloudinary")

	return result.SecureURL, nil
}

func avatarPublicID(studentID uint) string {
	return fmt.Sprintf("student-%d", studentID)
}
