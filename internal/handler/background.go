package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/blob"
	"github.com/sakif/poetry-studio/internal/service"
)

// multipartOverhead is the slack allowed on top of the file for boundaries and headers.
const multipartOverhead = 64 << 10

// BackgroundHandler lists and accepts gallery images.
type BackgroundHandler struct {
	backgrounds *service.BackgroundService
	logger      *slog.Logger
}

func NewBackgroundHandler(backgrounds *service.BackgroundService, logger *slog.Logger) *BackgroundHandler {
	return &BackgroundHandler{backgrounds: backgrounds, logger: logger}
}

// HandleList returns the public URLs of the gallery.
//
// HTTP: GET /api/backgrounds
func (h *BackgroundHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	urls, err := h.backgrounds.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, urls)
}

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	URL string `json:"url"`
}

// HandleUpload accepts a multipart form with a single "file" part.
//
// HTTP: POST /api/backgrounds
//
// The body is capped with http.MaxBytesReader so an oversized upload is cut off
// while it is still arriving instead of after it has been buffered.
func (h *BackgroundHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxUploadSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, blob.CheckSize(blob.MaxUploadSize+1))
			return
		}
		writeError(w, apperror.ValidationFailed("file", "a multipart \"file\" field is required"))
		return
	}
	defer file.Close()

	url, err := h.backgrounds.Upload(r.Context(), header.Filename, header.Size, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{URL: url})
}

// HandleDelete removes a gallery image.
//
// HTTP: DELETE /api/backgrounds?url=<public url>
func (h *BackgroundHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.backgrounds.Delete(r.Context(), r.URL.Query().Get("url")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
