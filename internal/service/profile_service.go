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
	"github.com/vedran77/activities/internal/observability"
	"github.com/vedran77/activities/internal/repository"
)

var (
	ErrAlreadyFollowing = domain.NewError(domain.ErrConflict, "already following this user")
	ErrCannotFollowSelf = domain.NewError(domain.ErrValidation, "cannot follow yourself")
	ErrInvalidPredicate = domain.NewError(domain.ErrValidation, "predicate must be followers or following")
)

type ProfileService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	photoRepo  repository.PhotoRepository
	publisher  events.Publisher
}

func NewProfileService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	photoRepo repository.PhotoRepository,
	publisher events.Publisher,
) *ProfileService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ProfileService{
		userRepo:   userRepo,
		followRepo: followRepo,
		photoRepo:  photoRepo,
		publisher:  publisher,
	}
}

type UpdateProfileInput struct {
	DisplayName string  `json:"display_name"`
	Bio         *string `json:"bio"`
}

func (s *ProfileService) GetProfile(ctx context.Context, username string, viewerID uuid.UUID) (*domain.Profile, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	following := false
	if viewerID != user.ID {
		following, err = s.followRepo.Exists(ctx, viewerID, user.ID)
		if err != nil {
			return nil, err
		}
	}

	photos, err := s.photoRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}

	p := profileOf(user)
	p.Following = following
	p.Photos = photos
	return p, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*domain.Profile, error) {
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		return nil, domain.NewError(domain.ErrValidation, "display name is required")
	}

	var bio *string
	if input.Bio != nil {
		trimmed := strings.TrimSpace(*input.Bio)
		if trimmed != "" {
			bio = &trimmed
		}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, name, bio); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	return s.GetProfile(ctx, user.Username, userID)
}

// Follow creates observer → target. The edge's primary key decides races.
func (s *ProfileService) Follow(ctx context.Context, observerUsername, targetUsername string) (err error) {
	defer func() { observability.RecordCommand("follow.create", err) }()

	observer, target, err := s.resolvePair(ctx, observerUsername, targetUsername)
	if err != nil {
		return err
	}
	if observer.ID == target.ID {
		return ErrCannotFollowSelf
	}

	edge := &domain.FollowEdge{
		ObserverID: observer.ID,
		TargetID:   target.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.followRepo.Create(ctx, edge); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return ErrAlreadyFollowing
		case errors.Is(err, repository.ErrMissingReference):
			return ErrUserNotFound
		}
		return fmt.Errorf("creating follow: %w", err)
	}

	events.Emit(ctx, s.publisher, events.New(events.FollowCreated, observer.Username, observer.ID, map[string]string{
		"observer": observer.Username,
		"target":   target.Username,
	}))
	return nil
}

// Unfollow removes observer → target. A missing edge is a successful no-op.
func (s *ProfileService) Unfollow(ctx context.Context, observerUsername, targetUsername string) (err error) {
	defer func() { observability.RecordCommand("follow.remove", err) }()

	observer, target, err := s.resolvePair(ctx, observerUsername, targetUsername)
	if err != nil {
		return err
	}

	removed, err := s.followRepo.Delete(ctx, observer.ID, target.ID)
	if err != nil {
		return fmt.Errorf("removing follow: %w", err)
	}
	if removed {
		events.Emit(ctx, s.publisher, events.New(events.FollowRemoved, observer.Username, observer.ID, map[string]string{
			"observer": observer.Username,
			"target":   target.Username,
		}))
	}
	return nil
}

// ListRelated returns the profiles on the other side of username's edges.
func (s *ProfileService) ListRelated(ctx context.Context, username string, direction domain.FollowDirection, viewerID uuid.UUID) ([]domain.Profile, error) {
	if !direction.Valid() {
		return nil, ErrInvalidPredicate
	}

	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	profiles, err := s.followRepo.ListProfiles(ctx, user.ID, direction, viewerID)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", direction, err)
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	return profiles, nil
}

func (s *ProfileService) lookup(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *ProfileService) resolvePair(ctx context.Context, observerUsername, targetUsername string) (*domain.User, *domain.User, error) {
	observer, err := s.lookup(ctx, observerUsername)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.lookup(ctx, targetUsername)
	if err != nil {
		return nil, nil, err
	}
	return observer, target, nil
}

func profileOf(u *domain.User) *domain.Profile {
	return &domain.Profile{
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		Bio:            u.Bio,
		Image:          u.ImageURL,
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FollowingCount,
	}
}
