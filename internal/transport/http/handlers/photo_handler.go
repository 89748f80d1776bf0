package handlers

import (
	"net/http"

	"github.com/vedran77/activities/internal/service"
	"github.com/vedran77/activities/internal/transport/http/middleware"
)

const maxPhotoBytes = 10 << 20

type PhotoHandler struct {
	photoService *service.PhotoService
}

func NewPhotoHandler(photoService *service.PhotoService) *PhotoHandler {
	return &PhotoHandler{photoService: photoService}
}

// Upload expects a multipart form with the image in the "file" field.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FILE", "A photo file is required")
		return
	}
	defer file.Close()

	photo, err := h.photoService.Upload(r.Context(), middleware.GetUserID(r.Context()), file)
	if err != nil {
		writeServiceError(w, r, "upload photo", err)
		return
	}

	writeJSON(w, http.StatusCreated, photo)
}

func (h *PhotoHandler) SetMain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.photoService.SetMain(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, r, "set main photo", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.photoService.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, r, "delete photo", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
