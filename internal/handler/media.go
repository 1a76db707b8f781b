// Package handler contains HTTP handlers for the Fixlens API.
//
// This file implements diagnostic media uploads. Clients upload the photo,
// video, or audio payload first and then reference the returned storage key
// in the diagnostic submission.
//
// Routes handled:
//   - POST /api/media            -> Upload
//   - GET  /api/media/{key...}   -> Serve
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fixlens/fixlens/internal/auth"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/storage"
)

// Upload size caps per resource type.
const (
	maxPhotoUploadBytes = 20 << 20  // 20 MB, matches the provider's media limit
	maxVideoUploadBytes = 100 << 20 // 100 MB
	maxAudioUploadBytes = 25 << 20  // 25 MB
)

// MediaHandler handles diagnostic media uploads and retrieval.
type MediaHandler struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(store storage.Storage, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes registers media routes on the provided mux.
// All routes require an authenticated user.
func (h *MediaHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/media", requireUser(http.HandlerFunc(h.Upload)))
	mux.Handle("GET /api/media/{key...}", requireUser(http.HandlerFunc(h.Serve)))
}

// =============================================================================
// POST /api/media
// =============================================================================

// Upload stores a diagnostic media payload and returns its storage key.
//
// Multipart form fields:
//   - resource_type: "photo", "video", or "audio"
//   - media:         the file
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "MediaHandler.Upload"

	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	// Bound the whole request before parsing; ParseMultipartForm's argument
	// only caps the in-memory portion.
	r.Body = http.MaxBytesReader(w, r.Body, maxVideoUploadBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "Upload is too large or malformed"))
		return
	}

	resource, err := domain.ParseResourceType(r.FormValue("resource_type"))
	if err != nil || !resource.IsDiagnosticMedia() {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "resource_type must be photo, video, or audio"))
		return
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "A media file is required"))
		return
	}
	defer file.Close()

	contentType := storage.DetectContentType(header.Header.Get("Content-Type"), header.Filename, nil)
	if !storage.IsAllowedMediaType(string(resource), contentType) {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Unsupported media type for "+string(resource)))
		return
	}

	key := storage.MediaKey(user.ID, string(resource), header.Filename, contentType)
	err = h.store.Put(r.Context(), key, file, storage.PutOptions{
		ContentType: contentType,
		MaxSize:     maxUploadBytes(resource),
	})
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, op, "Media exceeds the size limit"))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to store media"))
		return
	}

	h.logger.Info("media uploaded",
		"user_id", user.ID,
		"resource_type", resource,
		"key", key,
		"content_type", contentType,
	)

	respondJSON(w, http.StatusCreated, map[string]string{
		"payload_ref":   key,
		"resource_type": string(resource),
		"content_type":  contentType,
	})
}

func maxUploadBytes(resource domain.ResourceType) int64 {
	switch resource {
	case domain.ResourceVideo:
		return maxVideoUploadBytes
	case domain.ResourceAudio:
		return maxAudioUploadBytes
	default:
		return maxPhotoUploadBytes
	}
}

// =============================================================================
// GET /api/media/{key...}
// =============================================================================

// Serve streams a stored media payload back to its owner.
// Keys are namespaced by user ID, so ownership is a prefix check.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	const op = "MediaHandler.Serve"

	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	key := r.PathValue("key")
	if !strings.HasPrefix(key, "users/"+user.ID.String()+"/") {
		// Don't reveal whether the key exists for another user.
		NotFoundResponse(w, r, h.logger)
		return
	}

	reader, info, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundResponse(w, r, h.logger)
			return
		}
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to retrieve media"))
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("failed to stream media", "error", err, "key", key)
	}
}
