package storage

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestIsNoSuchKey(t *testing.T) {
	require.True(t, isNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	require.False(t, isNoSuchKey(minio.ErrorResponse{Code: "AccessDenied"}))
	require.False(t, isNoSuchKey(errors.New("boom")))
}

func TestNewMinIOStoreRejectsInvalidEndpoint(t *testing.T) {
	_, err := NewMinIOStore(Config{Endpoint: "localhost:9000/minio", Bucket: "content"}, zerolog.Nop())
	require.Error(t, err)
}
