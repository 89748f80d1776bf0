package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/events"
	"github.com/vedran77/activities/internal/test/fakes"
)

func newCommentFixture(t *testing.T) (*fakes.Store, *CommentService, *domain.Activity) {
	t.Helper()
	store := fakes.NewStore()
	host := store.AddUser("host")
	store.AddUser("guest")

	activities := NewActivityService(fakes.ActivityRepo{Store: store}, fakes.CommentRepo{Store: store}, nil)
	a, err := activities.Create(context.Background(), host.ID, ActivityInput{
		Title: "Quiz", Category: "culture", Date: time.Now().Add(time.Hour), City: "Rijeka", Venue: "Pub",
	})
	require.NoError(t, err)

	svc := NewCommentService(fakes.CommentRepo{Store: store}, fakes.ActivityRepo{Store: store}, fakes.UserRepo{Store: store}, &fakes.Publisher{})
	return store, svc, a
}

func TestCommentsKeepPostOrder(t *testing.T) {
	_, svc, a := newCommentFixture(t)
	ctx := context.Background()

	_, err := svc.Post(ctx, a.ID, "host", "hello")
	require.NoError(t, err)
	_, err = svc.Post(ctx, a.ID, "guest", "world")
	require.NoError(t, err)

	log, err := svc.List(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "hello", log[0].Body)
	assert.Equal(t, "host", log[0].Username)
	assert.Equal(t, "world", log[1].Body)
	assert.Equal(t, "guest", log[1].Username)
}

func TestPostCommentValidation(t *testing.T) {
	_, svc, a := newCommentFixture(t)
	ctx := context.Background()

	_, err := svc.Post(ctx, a.ID, "host", "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Post(ctx, uuid.New(), "host", "hi")
	assert.ErrorIs(t, err, ErrActivityNotFound)

	_, err = svc.Post(ctx, a.ID, "ghost", "hi")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.List(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostCommentBroadcasts(t *testing.T) {
	_, svc, a := newCommentFixture(t)
	n := &fakes.Notifier{}
	svc.SetNotifier(n)

	c, err := svc.Post(context.Background(), a.ID, "guest", "see you there")
	require.NoError(t, err)

	require.Len(t, n.Sent(), 1)
	assert.Equal(t, c.ID, n.Sent()[0].ID)
	assert.Equal(t, "guest", n.Sent()[0].Username)
}

func TestBroadcastFailureDoesNotFailPost(t *testing.T) {
	store, svc, a := newCommentFixture(t)
	pub := &fakes.Publisher{}
	svc.publisher = pub
	svc.SetNotifier(&fakes.Notifier{Err: errors.New("hub closed")})

	c, err := svc.Post(context.Background(), a.ID, "host", "still saved")
	require.NoError(t, err)
	require.NotNil(t, c)

	saved, err := fakes.CommentRepo{Store: store}.ListByActivity(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "still saved", saved[0].Body)
	assert.Equal(t, []string{events.CommentPosted}, pub.Types())
}
