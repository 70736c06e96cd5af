package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestNewScopesAvatarFolder(t *testing.T) {
	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/institute/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "institute/avatars", svc.folder)
}

func TestAvatarPublicIDIsStablePerStudent(t *testing.T) {
	require.Equal(t, "student-42", avatarPublicID(42))
	require.Equal(t, avatarPublicID(7), avatarPublicID(7))
}
