package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// OTPRepository persists issued one-time passcodes.
type OTPRepository interface {
	Issue(ctx context.Context, otp *models.OneTimePasscode) error
	Consume(ctx context.Context, identifier string, otpType models.OTPType, codeHash string, at time.Time) (bool, error)
	Revoke(ctx context.Context, id uint) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type otpRepository struct {
	db *gorm.DB
}

// NewOTPRepository constructs an OTP repository.
func NewOTPRepository(db *gorm.DB) OTPRepository {
	return &otpRepository{db: db}
}

// Issue supersedes every live code for the identifier and type, then stores the new one.
func (r *otpRepository) Issue(ctx context.Context, otp *models.OneTimePasscode) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OneTimePasscode{}).
			Where("identifier = ? AND type = ? AND status = ?", otp.Identifier, otp.Type, models.OTPStatusIssued).
			Update("status", models.OTPStatusSuperseded).Error; err != nil {
			return err
		}

		return tx.Create(otp).Error
	})
}

// Consume flips a matching live code to verified in a single conditional update.
func (r *otpRepository) Consume(ctx context.Context, identifier string, otpType models.OTPType, codeHash string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.OneTimePasscode{}).
		Where("identifier = ? AND type = ? AND code_hash = ?", identifier, otpType, codeHash).
		Where("status = ? AND expires_at > ?", models.OTPStatusIssued, at).
		Updates(map[string]interface{}{
			"status":  models.OTPStatusVerified,
			"used_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *otpRepository) Revoke(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.OneTimePasscode{}).
		Where("id = ? AND status = ?", id, models.OTPStatusIssued).
		Update("status", models.OTPStatusSuperseded).Error
}

func (r *otpRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.OneTimePasscode{})
	return result.RowsAffected, result.Error
}
