package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-api/internal/models"
)

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		raw     string
		otpType models.OTPType
		want    string
		wantErr bool
	}{
		{raw: " Student@Example.COM ", otpType: models.OTPTypeEmail, want: "student@example.com"},
		{raw: "Student <student@example.com>", otpType: models.OTPTypeEmail, wantErr: true},
		{raw: "not-an-email", otpType: models.OTPTypeEmail, wantErr: true},
		{raw: "98765 43210", otpType: models.OTPTypePhone, want: "+919876543210"},
		{raw: "098765-43210", otpType: models.OTPTypePhone, want: "+919876543210"},
		{raw: "+1 (415) 555-0100", otpType: models.OTPTypePhone, want: "+14155550100"},
		{raw: "0044 20 7946 0958", otpType: models.OTPTypePhone, want: "+442079460958"},
		{raw: "12345", otpType: models.OTPTypePhone, wantErr: true},
		{raw: "98765x43210", otpType: models.OTPTypePhone, wantErr: true},
		{raw: "student@example.com", otpType: models.OTPType("fax"), wantErr: true},
	}

	for _, tc := range cases {
		got, err := normalizeIdentifier(tc.raw, tc.otpType, "+91")
		if tc.wantErr {
			require.ErrorIs(t, err, ErrInvalidIdentifier, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, got)
	}
}

func TestNormalizePhoneWithoutCountryCode(t *testing.T) {
	_, err := normalizePhone("9876543210", "")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestMaskIdentifier(t *testing.T) {
	require.Equal(t, "s***@example.com", maskIdentifier("student@example.com"))
	require.Equal(t, "***3210", maskIdentifier("+919876543210"))
	require.Equal(t, "***", maskIdentifier("123"))
}

func TestGenerateOTPCode(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		code, err := generateOTPCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		require.NotEqual(t, byte('0'), code[0])
		seen[code] = struct{}{}
	}
	require.Greater(t, len(seen), 150)
}

func TestHashOTPBindsIdentifierAndChannel(t *testing.T) {
	base := hashOTP("student@example.com", models.OTPTypeEmail, "123456")
	require.Len(t, base, 64)
	require.Equal(t, base, hashOTP("student@example.com", models.OTPTypeEmail, "123456"))
	require.NotEqual(t, base, hashOTP("other@example.com", models.OTPTypeEmail, "123456"))
	require.NotEqual(t, base, hashOTP("student@example.com", models.OTPTypePhone, "123456"))
	require.NotEqual(t, base, hashOTP("student@example.com", models.OTPTypeEmail, "654321"))
}

func TestRedisTokenBucketRefills(t *testing.T) {
	_, client := setupRedis(t)
	limiter := NewRedisTokenBucket(client, 2, time.Minute).(*redisTokenBucket)
	clock := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "email:student@example.com")
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, err := limiter.Allow(ctx, "email:student@example.com")
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "email:other@example.com")
	require.NoError(t, err)
	require.True(t, allowed)

	clock = clock.Add(61 * time.Second)
	allowed, err = limiter.Allow(ctx, "email:student@example.com")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "email:student@example.com")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestRedisPendingStore(t *testing.T) {
	server, client := setupRedis(t)
	store := NewRedisPendingStore(client)
	ctx := context.Background()

	pending := PendingVerification{Identifier: "+919876543210", Type: models.OTPTypePhone, Name: "Ishaan", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Put(ctx, pending, time.Minute))

	got, ok, err := store.Get(ctx, models.OTPTypePhone, "+919876543210")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Ishaan", got.Name)

	_, ok, err = store.Get(ctx, models.OTPTypeEmail, "+919876543210")
	require.NoError(t, err)
	require.False(t, ok)

	server.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, models.OTPTypePhone, "+919876543210")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Put(ctx, pending, time.Minute))
	require.NoError(t, store.Delete(ctx, models.OTPTypePhone, "+919876543210"))
	_, ok, err = store.Get(ctx, models.OTPTypePhone, "+919876543210")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSMSGatewaySender(t *testing.T) {
	var received map[string]string
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewSMSGatewaySender(server.URL, "secret", "COACH", "Coaching")
	require.NoError(t, sender.Send(context.Background(), "+919876543210", "482913"))
	require.Equal(t, "Bearer secret", auth)
	require.Equal(t, "+919876543210", received["to"])
	require.Equal(t, "COACH", received["from"])
	require.True(t, strings.HasPrefix(received["message"], "482913"))
	require.Equal(t, "sms", sender.Name())
}

func TestSMSGatewaySenderReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewSMSGatewaySender(server.URL, "secret", "COACH", "Coaching")
	require.Error(t, sender.Send(context.Background(), "+919876543210", "482913"))
}

func TestSendGridOTPSender(t *testing.T) {
	var path, auth string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	original := sendgridHost
	sendgridHost = server.URL
	t.Cleanup(func() { sendgridHost = original })

	sender := NewSendGridOTPSender("SG.key", "Coaching", "noreply@example.com", "Coaching")
	require.NoError(t, sender.Send(context.Background(), "student@example.com", "123456"))
	require.Equal(t, "/v3/mail/send", path)
	require.Equal(t, "Bearer SG.key", auth)
	require.Contains(t, string(body), "student@example.com")
	require.Contains(t, string(body), "123456")
}
