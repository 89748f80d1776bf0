package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
)

var (
	// ErrDuplicate is returned when an insert hits a unique or primary key constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrMissingReference is returned when an insert points at a row that no longer exists.
	ErrMissingReference = errors.New("referenced record does not exist")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, displayName string, bio *string) error
}

type ActivityRepository interface {
	// CreateWithHost inserts the activity and its host record in one transaction.
	CreateWithHost(ctx context.Context, activity *domain.Activity, host *domain.AttendanceRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error)
	List(ctx context.Context, viewerID uuid.UUID, filter domain.ActivityFilter) ([]domain.Activity, error)
	Update(ctx context.Context, activity *domain.Activity) error
	Delete(ctx context.Context, id uuid.UUID) error

	AddAttendee(ctx context.Context, rec *domain.AttendanceRecord) error
	// RemoveAttendee deletes a non-host record and reports whether a row was removed.
	RemoveAttendee(ctx context.Context, activityID, userID uuid.UUID) (bool, error)
	GetAttendee(ctx context.Context, activityID, userID uuid.UUID) (*domain.AttendanceRecord, error)
	// ListAttendees returns rosters keyed by activity id, with Following set relative to viewerID.
	ListAttendees(ctx context.Context, activityIDs []uuid.UUID, viewerID uuid.UUID) (map[uuid.UUID][]domain.Attendee, error)
}

type FollowRepository interface {
	// Create inserts the edge and bumps both users' counters in one transaction.
	Create(ctx context.Context, edge *domain.FollowEdge) error
	// Delete removes the edge and decrements counters; false when there was no edge.
	Delete(ctx context.Context, observerID, targetID uuid.UUID) (bool, error)
	Exists(ctx context.Context, observerID, targetID uuid.UUID) (bool, error)
	ListProfiles(ctx context.Context, userID uuid.UUID, direction domain.FollowDirection, viewerID uuid.UUID) ([]domain.Profile, error)
	// ReconcileCounts rewrites drifted counters from the edge table and returns the rows fixed.
	ReconcileCounts(ctx context.Context) (int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error)
	ListByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Comment, error)
}

type PhotoRepository interface {
	// Create stores the photo; it becomes main when the user has no main photo yet.
	Create(ctx context.Context, photo *domain.Photo) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Photo, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Photo, error)
	// SetMain returns domain.ErrNotFound when userID does not own photoID.
	SetMain(ctx context.Context, userID, photoID uuid.UUID) error
	// Delete removes a non-main photo; false when nothing matched.
	Delete(ctx context.Context, userID, photoID uuid.UUID) (bool, error)
}
