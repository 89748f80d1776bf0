package handlers

import (
	"net/http"

	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/service"
	"github.com/vedran77/activities/internal/transport/http/middleware"
	"github.com/vedran77/activities/pkg/validator"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.GetProfile(r.Context(), r.PathValue("username"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "get profile", err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateProfileInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateProfile(input.DisplayName, input.Bio); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	profile, err := h.profileService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), input)
	if err != nil {
		writeServiceError(w, r, "update profile", err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Follow(w http.ResponseWriter, r *http.Request) {
	err := h.profileService.Follow(r.Context(), middleware.GetUsername(r.Context()), r.PathValue("username"))
	if err != nil {
		writeServiceError(w, r, "follow", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfileHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	err := h.profileService.Unfollow(r.Context(), middleware.GetUsername(r.Context()), r.PathValue("username"))
	if err != nil {
		writeServiceError(w, r, "unfollow", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRelated serves ?predicate=followers|following, defaulting to followers.
func (h *ProfileHandler) ListRelated(w http.ResponseWriter, r *http.Request) {
	direction := domain.FollowDirection(r.URL.Query().Get("predicate"))
	if direction == "" {
		direction = domain.Followers
	}

	profiles, err := h.profileService.ListRelated(r.Context(), r.PathValue("username"), direction, middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "list related", err)
		return
	}

	writeJSON(w, http.StatusOK, profiles)
}
