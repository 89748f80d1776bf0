package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/service"
	"github.com/vedran77/activities/internal/transport/http/middleware"
	"github.com/vedran77/activities/pkg/validator"
)

type ActivityHandler struct {
	activityService *service.ActivityService
}

func NewActivityHandler(activityService *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, errs := parseActivityFilter(r)
	if errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	activities, err := h.activityService.List(r.Context(), middleware.GetUserID(r.Context()), filter)
	if err != nil {
		writeServiceError(w, r, "list activities", err)
		return
	}

	writeJSON(w, http.StatusOK, activities)
}

func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.ActivityInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateActivity(input.Title, input.Category, input.City, input.Venue, input.Date); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	activity, err := h.activityService.Create(r.Context(), middleware.GetUserID(r.Context()), input)
	if err != nil {
		writeServiceError(w, r, "create activity", err)
		return
	}

	writeJSON(w, http.StatusCreated, activity)
}

func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	activity, err := h.activityService.Get(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, "get activity", err)
		return
	}

	writeJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var input service.ActivityInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateActivity(input.Title, input.Category, input.City, input.Venue, input.Date); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	activity, err := h.activityService.Update(r.Context(), middleware.GetUserID(r.Context()), id, input)
	if err != nil {
		writeServiceError(w, r, "update activity", err)
		return
	}

	writeJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.activityService.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, r, "delete activity", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ActivityHandler) Attend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.activityService.Attend(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		writeServiceError(w, r, "attend", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ActivityHandler) Unattend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.activityService.Unattend(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		writeServiceError(w, r, "unattend", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseActivityFilter reads ?after, ?after_id, ?start_date, ?is_going, ?is_host and ?limit.
func parseActivityFilter(r *http.Request) (domain.ActivityFilter, validator.ValidationErrors) {
	q := r.URL.Query()
	errs := make(validator.ValidationErrors)
	var filter domain.ActivityFilter

	if v := q.Get("after"); v != "" {
		if t, err := parseTime(v); err != nil {
			errs.Add("after", "Invalid date")
		} else {
			filter.After = &t
		}
	}
	if v := q.Get("after_id"); v != "" {
		if id, err := uuid.Parse(v); err != nil {
			errs.Add("after_id", "Invalid ID")
		} else {
			filter.AfterID = &id
		}
	}
	if v := q.Get("start_date"); v != "" {
		if t, err := parseTime(v); err != nil {
			errs.Add("start_date", "Invalid date")
		} else {
			filter.StartDate = &t
		}
	}
	if v := q.Get("is_going"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs.Add("is_going", "Must be true or false")
		}
		filter.IsGoing = b
	}
	if v := q.Get("is_host"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs.Add("is_host", "Must be true or false")
		}
		filter.IsHost = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs.Add("limit", "Must be a positive number")
		}
		filter.Limit = n
	}

	return filter, errs
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
