package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/events"
	"github.com/vedran77/activities/internal/logging"
	"github.com/vedran77/activities/internal/observability"
	"github.com/vedran77/activities/internal/repository"
)

var (
	ErrActivityNotFound = domain.NewError(domain.ErrNotFound, "activity not found")
	ErrAlreadyAttending = domain.NewError(domain.ErrConflict, "user is already attending this activity")
	ErrHostCannotLeave  = domain.NewError(domain.ErrInvalidOperation, "host cannot remove self as host")
	ErrNotHost          = domain.NewError(domain.ErrForbidden, "only the host can perform this action")
)

const maxListLimit = 100

type ActivityService struct {
	activityRepo repository.ActivityRepository
	commentRepo  repository.CommentRepository
	publisher    events.Publisher
}

func NewActivityService(
	activityRepo repository.ActivityRepository,
	commentRepo repository.CommentRepository,
	publisher events.Publisher,
) *ActivityService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ActivityService{
		activityRepo: activityRepo,
		commentRepo:  commentRepo,
		publisher:    publisher,
	}
}

type ActivityInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	City        string    `json:"city"`
	Venue       string    `json:"venue"`
}

func (in ActivityInput) normalize() (ActivityInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.City = strings.TrimSpace(in.City)
	in.Venue = strings.TrimSpace(in.Venue)

	switch {
	case in.Title == "":
		return in, domain.NewError(domain.ErrValidation, "title is required")
	case in.Category == "":
		return in, domain.NewError(domain.ErrValidation, "category is required")
	case in.Date.IsZero():
		return in, domain.NewError(domain.ErrValidation, "date is required")
	case in.City == "":
		return in, domain.NewError(domain.ErrValidation, "city is required")
	case in.Venue == "":
		return in, domain.NewError(domain.ErrValidation, "venue is required")
	}
	return in, nil
}

// Create stores the activity together with the host's attendance record.
func (s *ActivityService) Create(ctx context.Context, hostID uuid.UUID, input ActivityInput) (activity *domain.Activity, err error) {
	defer func() { observability.RecordCommand("activity.create", err) }()

	input, err = input.normalize()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &domain.Activity{
		ID:          uuid.New(),
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Date:        input.Date.UTC(),
		City:        input.City,
		Venue:       input.Venue,
		CreatedAt:   now,
	}
	host := &domain.AttendanceRecord{
		ActivityID: a.ID,
		UserID:     hostID,
		IsHost:     true,
		JoinedAt:   now,
	}

	if err := s.activityRepo.CreateWithHost(ctx, a, host); err != nil {
		if errors.Is(err, repository.ErrMissingReference) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("creating activity: %w", err)
	}

	l := logging.Ctx(ctx)
	l.Info().Str(logging.FieldActivity, a.ID.String()).Msg("activity created")
	events.Emit(ctx, s.publisher, events.New(events.ActivityCreated, a.ID.String(), hostID, a))

	return s.Get(ctx, a.ID, hostID)
}

// Get returns the activity with its roster and comment log, flagged for viewerID.
func (s *ActivityService) Get(ctx context.Context, activityID, viewerID uuid.UUID) (*domain.Activity, error) {
	a, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrActivityNotFound
	}

	rosters, err := s.activityRepo.ListAttendees(ctx, []uuid.UUID{a.ID}, viewerID)
	if err != nil {
		return nil, fmt.Errorf("listing attendees: %w", err)
	}
	a.Attendees = rosters[a.ID]
	setViewerFlags(a, viewerID)

	comments, err := s.commentRepo.ListByActivity(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	a.Comments = comments

	return a, nil
}

func (s *ActivityService) List(ctx context.Context, viewerID uuid.UUID, filter domain.ActivityFilter) ([]domain.Activity, error) {
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = 20
	}

	activities, err := s.activityRepo.List(ctx, viewerID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	if len(activities) == 0 {
		return []domain.Activity{}, nil
	}

	ids := make([]uuid.UUID, len(activities))
	for i := range activities {
		ids[i] = activities[i].ID
	}
	rosters, err := s.activityRepo.ListAttendees(ctx, ids, viewerID)
	if err != nil {
		return nil, fmt.Errorf("listing attendees: %w", err)
	}
	for i := range activities {
		activities[i].Attendees = rosters[activities[i].ID]
		setViewerFlags(&activities[i], viewerID)
	}

	return activities, nil
}

func (s *ActivityService) Update(ctx context.Context, userID, activityID uuid.UUID, input ActivityInput) (activity *domain.Activity, err error) {
	defer func() { observability.RecordCommand("activity.update", err) }()

	input, err = input.normalize()
	if err != nil {
		return nil, err
	}

	a, err := s.requireHost(ctx, activityID, userID)
	if err != nil {
		return nil, err
	}

	a.Title = input.Title
	a.Description = input.Description
	a.Category = input.Category
	a.Date = input.Date.UTC()
	a.City = input.City
	a.Venue = input.Venue

	if err := s.activityRepo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("updating activity: %w", err)
	}

	return s.Get(ctx, a.ID, userID)
}

func (s *ActivityService) Delete(ctx context.Context, userID, activityID uuid.UUID) (err error) {
	defer func() { observability.RecordCommand("activity.delete", err) }()

	if _, err := s.requireHost(ctx, activityID, userID); err != nil {
		return err
	}

	if err := s.activityRepo.Delete(ctx, activityID); err != nil {
		return fmt.Errorf("deleting activity: %w", err)
	}

	events.Emit(ctx, s.publisher, events.New(events.ActivityDeleted, activityID.String(), userID, nil))
	return nil
}

// Attend adds a non-host record. The primary key decides races; the loser gets ErrAlreadyAttending.
func (s *ActivityService) Attend(ctx context.Context, activityID, userID uuid.UUID) (err error) {
	defer func() { observability.RecordCommand("attendance.join", err) }()

	if err := s.requireActivity(ctx, activityID); err != nil {
		return err
	}

	rec := &domain.AttendanceRecord{
		ActivityID: activityID,
		UserID:     userID,
		IsHost:     false,
		JoinedAt:   time.Now().UTC(),
	}
	if err := s.activityRepo.AddAttendee(ctx, rec); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return ErrAlreadyAttending
		case errors.Is(err, repository.ErrMissingReference):
			// deleted between the lookup and the insert
			return ErrActivityNotFound
		}
		return fmt.Errorf("adding attendee: %w", err)
	}

	events.Emit(ctx, s.publisher, events.New(events.AttendanceJoined, activityID.String(), userID, rec))
	return nil
}

// Unattend removes the caller's record. A missing record is a successful no-op.
func (s *ActivityService) Unattend(ctx context.Context, activityID, userID uuid.UUID) (err error) {
	defer func() { observability.RecordCommand("attendance.leave", err) }()

	if err := s.requireActivity(ctx, activityID); err != nil {
		return err
	}

	rec, err := s.activityRepo.GetAttendee(ctx, activityID, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if rec.IsHost {
		return ErrHostCannotLeave
	}

	removed, err := s.activityRepo.RemoveAttendee(ctx, activityID, userID)
	if err != nil {
		return fmt.Errorf("removing attendee: %w", err)
	}
	if removed {
		events.Emit(ctx, s.publisher, events.New(events.AttendanceLeft, activityID.String(), userID, nil))
	}
	return nil
}

func (s *ActivityService) requireActivity(ctx context.Context, activityID uuid.UUID) error {
	a, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrActivityNotFound
	}
	return nil
}

func (s *ActivityService) requireHost(ctx context.Context, activityID, userID uuid.UUID) (*domain.Activity, error) {
	a, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrActivityNotFound
	}

	rec, err := s.activityRepo.GetAttendee(ctx, activityID, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.IsHost {
		return nil, ErrNotHost
	}
	return a, nil
}

func setViewerFlags(a *domain.Activity, viewerID uuid.UUID) {
	a.IsGoing, a.IsHost = false, false
	for _, att := range a.Attendees {
		if att.UserID != viewerID {
			continue
		}
		a.IsGoing = true
		a.IsHost = att.IsHost
	}
}
