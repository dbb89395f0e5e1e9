package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUploadBlob_RoundTrip(t *testing.T) {
	signer := NewSigner("test-key", time.Hour)
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080", signer)
	require.NoError(t, err)

	matchID := uuid.New()
	rawURL, err := store.UploadBlob(context.Background(), matchID, KindClips, "event-1.mp4", strings.NewReader("clip bytes"))
	require.NoError(t, err)

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	relPath := strings.TrimPrefix(u.Path, "/media/")
	token := u.Query().Get("t")
	require.NotEmpty(t, token)

	require.NoError(t, signer.Verify(token, relPath))

	f, err := store.Open(relPath)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 32)
	n, _ := f.Read(buf)
	require.Equal(t, "clip bytes", string(buf[:n]))
}

func TestUploadBlob_RejectsUnknownKind(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost", NewSigner("k", time.Hour))
	require.NoError(t, err)

	_, err = store.UploadBlob(context.Background(), uuid.New(), "exports", "x.bin", strings.NewReader("x"))
	require.Error(t, err)
}

func TestSigner_PathBinding(t *testing.T) {
	signer := NewSigner("test-key", time.Hour)
	token, err := signer.Sign("m/clips/a.mp4")
	require.NoError(t, err)

	require.NoError(t, signer.Verify(token, "m/clips/a.mp4"))
	require.ErrorIs(t, signer.Verify(token, "m/clips/b.mp4"), ErrInvalidMediaToken)
	require.ErrorIs(t, signer.Verify("garbage", "m/clips/a.mp4"), ErrInvalidMediaToken)
}

func TestSigner_Expiry(t *testing.T) {
	signer := NewSigner("test-key", -time.Minute)
	token, err := signer.Sign("m/clips/a.mp4")
	require.NoError(t, err)
	require.ErrorIs(t, signer.Verify(token, "m/clips/a.mp4"), ErrExpiredMediaToken)
}

func TestOpen_NoTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost", NewSigner("k", time.Hour))
	require.NoError(t, err)

	_, err = store.Open("../outside")
	require.Error(t, err)
	_, err = store.Open("/etc/passwd")
	require.Error(t, err)
}
