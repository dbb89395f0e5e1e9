package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	KindClips  = "clips"
	KindImages = "images"
)

// LocalStore keeps artifacts on disk under root/{matchID}/{kind}/{file} and
// hands out signed playback URLs served by the media handler.
type LocalStore struct {
	root    string
	baseURL string
	signer  *Signer
}

func NewLocalStore(root, baseURL string, signer *Signer) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
	}, nil
}

// UploadBlob streams r into the store and returns the signed URL.
// kind is KindClips or KindImages.
func (s *LocalStore) UploadBlob(ctx context.Context, matchID uuid.UUID, kind, filename string, r io.Reader) (string, error) {
	if kind != KindClips && kind != KindImages {
		return "", fmt.Errorf("unknown artifact kind %q", kind)
	}
	filename = filepath.Base(filename) // no traversal via artifact names

	dir := filepath.Join(s.root, matchID.String(), kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	// Write to a temp name first so a half-written artifact is never
	// visible under its final URL.
	dest := filepath.Join(dir, filename)
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	relPath := fmt.Sprintf("%s/%s/%s", matchID, kind, filename)
	token, err := s.signer.Sign(relPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/media/%s?t=%s", s.baseURL, relPath, token), nil
}

// Open resolves a previously uploaded artifact for serving. The relative
// path has already been token-verified by the handler.
func (s *LocalStore) Open(relPath string) (*os.File, error) {
	clean := filepath.Clean(relPath)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(s.root, clean))
}

func (s *LocalStore) Signer() *Signer { return s.signer }
