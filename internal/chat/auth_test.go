package chat_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/enisar25/SocialApp/internal/chat"
	"github.com/enisar25/SocialApp/internal/directory"
)

const testSecret = "test-signing-secret"

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func seededDirectory() *directory.MemoryDirectory {
	dir := directory.NewMemoryDirectory()
	dir.Add(chat.User{ID: "alice", Username: "alice", Verified: true})
	dir.Add(chat.User{ID: "mallory", Username: "mallory", Verified: false})
	return dir
}

func TestAuthenticateValidCredential(t *testing.T) {
	req := require.New(t)
	auth := chat.NewAuthenticator(testSecret, seededDirectory(), newTestLogger())

	token, err := chat.MintToken(testSecret, "alice", time.Hour)
	req.NoError(err)

	user, err := auth.Authenticate(context.Background(), token)
	req.NoError(err)
	req.Equal("alice", user.ID)
	req.True(user.Verified)
}

func TestAuthenticateFailures(t *testing.T) {
	auth := chat.NewAuthenticator(testSecret, seededDirectory(), newTestLogger())

	expired, err := chat.MintToken(testSecret, "alice", -time.Minute)
	require.NoError(t, err)
	wrongSecret, err := chat.MintToken("some-other-secret", "alice", time.Hour)
	require.NoError(t, err)
	unknownUser, err := chat.MintToken(testSecret, "nobody", time.Hour)
	require.NoError(t, err)
	unverified, err := chat.MintToken(testSecret, "mallory", time.Hour)
	require.NoError(t, err)
	noSubject, err := chat.MintToken(testSecret, "", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name       string
		credential string
	}{
		{"missing credential", ""},
		{"garbage credential", "not-a-jwt"},
		{"expired token", expired},
		{"wrong signature", wrongSecret},
		{"unknown user", unknownUser},
		{"unverified account", unverified},
		{"missing subject", noSubject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user, err := auth.Authenticate(context.Background(), tc.credential)
			require.Nil(t, user)
			require.ErrorIs(t, err, chat.ErrUnauthenticated)
		})
	}
}
