package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/coaching-api/internal/models"
)

// PendingVerification is what an OTP request remembers until the code is verified.
type PendingVerification struct {
	Identifier string         `json:"identifier"`
	Type       models.OTPType `json:"type"`
	Name       string         `json:"name"`
	CreatedAt  time.Time      `json:"created_at"`
}

// PendingVerificationStore keeps pending verifications for the lifetime of a code.
type PendingVerificationStore interface {
	Put(ctx context.Context, pending PendingVerification, ttl time.Duration) error
	Get(ctx context.Context, otpType models.OTPType, identifier string) (PendingVerification, bool, error)
	Delete(ctx context.Context, otpType models.OTPType, identifier string) error
}

type redisPendingStore struct {
	client *redis.Client
	prefix string
}

// NewRedisPendingStore stores pending verifications as JSON values with a TTL.
func NewRedisPendingStore(client *redis.Client) PendingVerificationStore {
	return &redisPendingStore{client: client, prefix: "otp:pending"}
}

func (s *redisPendingStore) key(otpType models.OTPType, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, otpType, identifier)
}

func (s *redisPendingStore) Put(ctx context.Context, pending PendingVerification, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(pending.Type, pending.Identifier), payload, ttl).Err()
}

func (s *redisPendingStore) Get(ctx context.Context, otpType models.OTPType, identifier string) (PendingVerification, bool, error) {
	raw, err := s.client.Get(ctx, s.key(otpType, identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PendingVerification{}, false, nil
		}
		return PendingVerification{}, false, err
	}

	var pending PendingVerification
	if err := json.Unmarshal(raw, &pending); err != nil {
		return PendingVerification{}, false, err
	}
	return pending, true, nil
}

func (s *redisPendingStore) Delete(ctx context.Context, otpType models.OTPType, identifier string) error {
	return s.client.Del(ctx, s.key(otpType, identifier)).Err()
}
