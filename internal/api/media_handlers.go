package api

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matchframe/mf-clips/internal/storage"
)

// MediaHandler serves stored clips and thumbnails. URLs are signed: the
// token in the query must have been issued for exactly this path.
type MediaHandler struct {
	Store *storage.LocalStore
}

func NewMediaHandler(store *storage.LocalStore) *MediaHandler {
	return &MediaHandler{Store: store}
}

func (h *MediaHandler) Register(r chi.Router) {
	r.Get("/media/{matchID}/{kind}/{file}", h.Serve)
}

// GET /media/{matchID}/{kind}/{file}?t={token}
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	kind := chi.URLParam(r, "kind")
	file := chi.URLParam(r, "file")
	relPath := path.Join(matchID, kind, file)

	token := r.URL.Query().Get("t")
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Missing token")
		return
	}
	if err := h.Store.Signer().Verify(token, relPath); err != nil {
		if errors.Is(err, storage.ErrExpiredMediaToken) {
			respondError(w, http.StatusUnauthorized, "Token expired")
			return
		}
		respondError(w, http.StatusForbidden, "Invalid token")
		return
	}

	f, err := h.Store.Open(relPath)
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}

	switch {
	case strings.HasSuffix(file, ".mp4"):
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Cache-Control", "private, max-age=3600")
	case strings.HasSuffix(file, ".jpg"), strings.HasSuffix(file, ".jpeg"):
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "private, max-age=3600")
	}

	// ServeContent handles Range requests, which <video> relies on.
	http.ServeContent(w, r, file, info.ModTime(), f)
}
