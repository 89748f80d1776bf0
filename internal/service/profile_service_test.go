package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/events"
	"github.com/vedran77/activities/internal/test/fakes"
)

func newProfileFixture() (*fakes.Store, *ProfileService, *fakes.Publisher) {
	store := fakes.NewStore()
	pub := &fakes.Publisher{}
	svc := NewProfileService(fakes.UserRepo{Store: store}, fakes.FollowRepo{Store: store}, fakes.PhotoRepo{Store: store}, pub)
	return store, svc, pub
}

func usernames(profiles []domain.Profile) []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = p.Username
	}
	return out
}

func TestFollowThenListRelated(t *testing.T) {
	store, svc, pub := newProfileFixture()
	ctx := context.Background()
	x := store.AddUser("x")
	y := store.AddUser("y")

	require.NoError(t, svc.Follow(ctx, "x", "y"))

	followers, err := svc.ListRelated(ctx, "y", domain.Followers, y.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, usernames(followers))
	assert.False(t, followers[0].Following)

	following, err := svc.ListRelated(ctx, "x", domain.Following, x.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, usernames(following))
	assert.True(t, following[0].Following)

	require.NoError(t, svc.Unfollow(ctx, "x", "y"))
	followers, err = svc.ListRelated(ctx, "y", domain.Followers, y.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)

	assert.Equal(t, []string{events.FollowCreated, events.FollowRemoved}, pub.Types())
}

func TestFollowTwiceConflicts(t *testing.T) {
	store, svc, _ := newProfileFixture()
	ctx := context.Background()
	store.AddUser("x")
	y := store.AddUser("y")

	require.NoError(t, svc.Follow(ctx, "x", "y"))
	err := svc.Follow(ctx, "x", "y")
	assert.ErrorIs(t, err, ErrAlreadyFollowing)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, store.User(y.ID).FollowersCount)
}

func TestUnfollowTwiceIsNoop(t *testing.T) {
	store, svc, pub := newProfileFixture()
	ctx := context.Background()
	store.AddUser("x")
	y := store.AddUser("y")

	require.NoError(t, svc.Follow(ctx, "x", "y"))
	require.NoError(t, svc.Unfollow(ctx, "x", "y"))
	require.NoError(t, svc.Unfollow(ctx, "x", "y"))
	assert.Equal(t, 0, store.User(y.ID).FollowersCount)
	assert.Equal(t, []string{events.FollowCreated, events.FollowRemoved}, pub.Types())
}

func TestFollowUnknownAndSelf(t *testing.T) {
	store, svc, _ := newProfileFixture()
	ctx := context.Background()
	store.AddUser("x")

	assert.ErrorIs(t, svc.Follow(ctx, "x", "ghost"), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Follow(ctx, "ghost", "x"), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Unfollow(ctx, "x", "ghost"), ErrUserNotFound)
	assert.ErrorIs(t, svc.Follow(ctx, "x", "x"), ErrCannotFollowSelf)
}

func TestCountersTrackEdges(t *testing.T) {
	store, svc, _ := newProfileFixture()
	ctx := context.Background()
	a := store.AddUser("a")
	store.AddUser("b")
	store.AddUser("c")

	require.NoError(t, svc.Follow(ctx, "b", "a"))
	require.NoError(t, svc.Follow(ctx, "c", "a"))
	require.NoError(t, svc.Follow(ctx, "a", "b"))

	p, err := svc.GetProfile(ctx, "a", uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p.FollowersCount)
	assert.Equal(t, 1, p.FollowingCount)

	require.NoError(t, svc.Unfollow(ctx, "c", "a"))
	assert.Equal(t, 1, store.User(a.ID).FollowersCount)
}

func TestListRelatedValidation(t *testing.T) {
	store, svc, _ := newProfileFixture()
	ctx := context.Background()
	store.AddUser("x")

	_, err := svc.ListRelated(ctx, "x", domain.FollowDirection("friends"), uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidPredicate)

	_, err = svc.ListRelated(ctx, "ghost", domain.Followers, uuid.Nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetProfileFollowingFlag(t *testing.T) {
	store, svc, _ := newProfileFixture()
	ctx := context.Background()
	viewer := store.AddUser("viewer")
	store.AddUser("target")

	p, err := svc.GetProfile(ctx, "target", viewer.ID)
	require.NoError(t, err)
	assert.False(t, p.Following)

	require.NoError(t, svc.Follow(ctx, "viewer", "target"))
	p, err = svc.GetProfile(ctx, "target", viewer.ID)
	require.NoError(t, err)
	assert.True(t, p.Following)
	assert.Equal(t, 1, p.FollowersCount)
}

func TestUpdateProfile(t *testing.T) {
	store, svc, _ := newProfileFixture()
	ctx := context.Background()
	u := store.AddUser("someone")

	_, err := svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{DisplayName: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	bio := "  likes hiking "
	p, err := svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{DisplayName: "Some One", Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Some One", p.DisplayName)
	require.NotNil(t, p.Bio)
	assert.Equal(t, "likes hiking", *p.Bio)
}
