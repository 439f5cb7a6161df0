package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/starford/jotter/internal/imagecodec"
)

// ImageHandler serves and accepts note images.
type ImageHandler struct {
	h              *Handler
	maxUploadBytes int64
}

// NewImageHandler creates an image handler that rejects uploads larger than
// maxUploadBytes.
func NewImageHandler(h *Handler, maxUploadBytes int64) *ImageHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &ImageHandler{h: h, maxUploadBytes: maxUploadBytes}
}

// Upload handles PUT /api/notes/{id}/image (multipart/form-data, field "file").
// The image is decoded, scaled and stored as PNG.
//
//	@Summary		Attach an image to a note
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		int		true	"Note id"
//	@Param			file	formData	file	true	"png, jpeg, gif or webp image"
//	@Success		200		{object}	NoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/image [put]
func (ih *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	note, err := ih.h.loadNote(r)
	if err != nil {
		writeError(w, "upload image", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ih.maxUploadBytes)
	if err := r.ParseMultipartForm(ih.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("image too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	img, info, err := imagecodec.Normalize(raw, ih.h.images)
	if err != nil {
		writeError(w, "upload image", err)
		return
	}
	slog.Debug("image normalized",
		slog.Int64("id", note.IDValue()),
		slog.String("format", info.Format),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.Bool("scaled", info.Scaled),
	)

	note.Image = img
	if err := ih.h.svc.AddNote(r.Context(), note); err != nil {
		writeError(w, "upload image", err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(*note))
}

// Serve handles GET /api/notes/{id}/image.
//
//	@Summary		Download a note image
//	@Tags			images
//	@Produce		png
//	@Param			id	path	int	true	"Note id"
//	@Success		200	"PNG image"
//	@Success		304	"Not modified"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/image [get]
func (ih *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	note, err := ih.h.loadNote(r)
	if err != nil {
		writeError(w, "serve image", err)
		return
	}
	if len(note.Image) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody("note has no image"))
		return
	}

	etag := imagecodec.ETag(note.Image)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", imagecodec.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(note.Image)
}

// Remove handles DELETE /api/notes/{id}/image.
//
//	@Summary		Remove the image of a note
//	@Tags			images
//	@Param			id	path	int	true	"Note id"
//	@Success		204	"Image removed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/image [delete]
func (ih *ImageHandler) Remove(w http.ResponseWriter, r *http.Request) {
	note, err := ih.h.loadNote(r)
	if err != nil {
		writeError(w, "remove image", err)
		return
	}
	if note.Image != nil {
		note.Image = nil
		if err := ih.h.svc.AddNote(r.Context(), note); err != nil {
			writeError(w, "remove image", err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
