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

const maxCommentLength = 2000

// Notifier pushes new comments to viewers of the activity.
// Delivery is best-effort; a returned error is logged by the caller.
type Notifier interface {
	NotifyNewComment(ctx context.Context, comment *domain.Comment) error
}

type CommentService struct {
	commentRepo  repository.CommentRepository
	activityRepo repository.ActivityRepository
	userRepo     repository.UserRepository
	publisher    events.Publisher
	notifier     Notifier
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	activityRepo repository.ActivityRepository,
	userRepo repository.UserRepository,
	publisher events.Publisher,
) *CommentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CommentService{
		commentRepo:  commentRepo,
		activityRepo: activityRepo,
		userRepo:     userRepo,
		publisher:    publisher,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *CommentService) SetNotifier(n Notifier) {
	s.notifier = n
}

type PostCommentInput struct {
	Body string `json:"body"`
}

// Post appends a comment and then hands it to the notifier.
// Notifier failures never fail the command.
func (s *CommentService) Post(ctx context.Context, activityID uuid.UUID, authorUsername, body string) (comment *domain.Comment, err error) {
	defer func() { observability.RecordCommand("comment.post", err) }()

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.NewError(domain.ErrValidation, "comment body is required")
	}
	if len([]rune(body)) > maxCommentLength {
		return nil, domain.NewError(domain.ErrValidation, "comment body is too long")
	}

	a, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrActivityNotFound
	}

	author, err := s.userRepo.GetByUsername(ctx, authorUsername)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, ErrUserNotFound
	}

	c := &domain.Comment{
		ID:          uuid.New(),
		ActivityID:  activityID,
		AuthorID:    author.ID,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
		Username:    author.Username,
		DisplayName: author.DisplayName,
		Image:       author.ImageURL,
	}
	if err := s.commentRepo.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrMissingReference) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.broadcast(ctx, c)
	events.Emit(ctx, s.publisher, events.New(events.CommentPosted, activityID.String(), author.ID, c))

	return c, nil
}

func (s *CommentService) List(ctx context.Context, activityID uuid.UUID) ([]domain.Comment, error) {
	a, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrActivityNotFound
	}

	comments, err := s.commentRepo.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return comments, nil
}

func (s *CommentService) broadcast(ctx context.Context, c *domain.Comment) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyNewComment(ctx, c); err != nil {
		observability.RecordBroadcastFailure()
		l := logging.Ctx(ctx)
		l.Warn().Err(err).
			Str(logging.FieldActivity, c.ActivityID.String()).
			Str("comment_id", c.ID.String()).
			Msg("comment broadcast failed")
	}
}
