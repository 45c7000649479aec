package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/aigents-hub/aigents-api/pkg/images"
)

// ImagesHandler serves vehicle imagery:
// POST /automobiles/{id}/images (multipart field "file")
// GET  /automobiles/{id}/images/{fileName}
type ImagesHandler struct {
	Service  *images.Service
	MaxBytes int64
	Logger   *slog.Logger
}

func (h ImagesHandler) Routes(r chi.Router) {
	r.Post("/{id}/images", h.upload)
	r.Get("/{id}/images/{fileName}", h.download)
}

func (h ImagesHandler) upload(w http.ResponseWriter, r *http.Request) {
	automobileID := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFor(header.Filename)
	}

	objectName, err := h.Service.Upload(r.Context(), automobileID, header.Filename, contentType, data)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("image upload failed", "automobile_id", automobileID, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "upload failed"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message":    "image uploaded",
		"path":       fmt.Sprintf("/automobiles/%s/images/%s", automobileID, header.Filename),
		"objectName": objectName,
	})
}

func (h ImagesHandler) download(w http.ResponseWriter, r *http.Request) {
	automobileID := chi.URLParam(r, "id")
	fileName := chi.URLParam(r, "fileName")

	img, err := h.Service.Get(r.Context(), automobileID, fileName)
	if err != nil {
		if errors.Is(err, images.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "image not found"})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("image download failed", "automobile_id", automobileID, "file", fileName, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "download failed"})
		return
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = contentTypeFor(fileName)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func contentTypeFor(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
