package handlers

import (
	"net/http"

	"github.com/vedran77/activities/internal/service"
	"github.com/vedran77/activities/internal/transport/http/middleware"
	"github.com/vedran77/activities/pkg/validator"
)

type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	activityID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	comments, err := h.commentService.List(r.Context(), activityID)
	if err != nil {
		writeServiceError(w, r, "list comments", err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) Post(w http.ResponseWriter, r *http.Request) {
	activityID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var input service.PostCommentInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateComment(input.Body); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	comment, err := h.commentService.Post(r.Context(), activityID, middleware.GetUsername(r.Context()), input.Body)
	if err != nil {
		writeServiceError(w, r, "post comment", err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}
