package reconciler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/test/fakes"
)

type fakeRepairer struct {
	calls atomic.Int32
	fixed int64
	err   error
}

func (f *fakeRepairer) ReconcileCounts(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.fixed, f.err
}

func TestRunOnce(t *testing.T) {
	repo := &fakeRepairer{fixed: 3}
	r := New(repo, time.Minute)

	assert.Equal(t, int64(3), r.RunOnce(context.Background()))
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	r := New(&fakeRepairer{err: errors.New("db down")}, time.Minute)
	assert.Equal(t, int64(0), r.RunOnce(context.Background()))
}

func TestLoopTicksAndStops(t *testing.T) {
	repo := &fakeRepairer{}
	r := New(repo, 10*time.Millisecond)
	r.Start(context.Background())

	require.Eventually(t, func() bool { return repo.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	r.Stop()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(&fakeRepairer{}, time.Hour)
	r.Start(ctx)
	cancel()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func TestDefaultInterval(t *testing.T) {
	r := New(&fakeRepairer{}, 0)
	assert.Equal(t, defaultInterval, r.interval)
}

func TestRepairsInjectedDrift(t *testing.T) {
	store := fakes.NewStore()
	follows := fakes.FollowRepo{Store: store}
	ctx := context.Background()

	x := store.AddUser("x")
	y := store.AddUser("y")
	require.NoError(t, follows.Create(ctx, &domain.FollowEdge{ObserverID: x.ID, TargetID: y.ID, CreatedAt: time.Now()}))

	store.DriftCounters(y.ID, 7, 3)

	r := New(follows, time.Minute)
	assert.Equal(t, int64(1), r.RunOnce(ctx))
	assert.Equal(t, 1, store.User(y.ID).FollowersCount)
	assert.Equal(t, 0, store.User(y.ID).FollowingCount)

	assert.Equal(t, int64(0), r.RunOnce(ctx))
}
