//go:build integration

package postgres

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/vedran77/activities/internal/database"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/repository"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("activities"),
		postgrescontainer.WithUsername("activities"),
		postgrescontainer.WithPassword("activities"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(pool, migrationsDir(t), "activities"))
	return pool
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

func createUser(t *testing.T, repo *UserRepo, username string) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := &domain.User{
		ID:           uuid.New(),
		Email:        username + "@example.com",
		Username:     username,
		DisplayName:  username,
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func createActivity(t *testing.T, repo *ActivityRepo, host uuid.UUID) *domain.Activity {
	t.Helper()
	now := time.Now().UTC()
	a := &domain.Activity{
		ID:        uuid.New(),
		Title:     "Board games",
		Category:  "culture",
		Date:      now.Add(48 * time.Hour),
		City:      "Zagreb",
		Venue:     "Library",
		CreatedAt: now,
	}
	rec := &domain.AttendanceRecord{ActivityID: a.ID, UserID: host, IsHost: true, JoinedAt: now}
	require.NoError(t, repo.CreateWithHost(context.Background(), a, rec))
	return a
}

func TestRepositories(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	users := NewUserRepo(pool)
	activities := NewActivityRepo(pool)
	follows := NewFollowRepo(pool)
	comments := NewCommentRepo(pool)
	photos := NewPhotoRepo(pool)

	t.Run("duplicate username maps to ErrDuplicate", func(t *testing.T) {
		createUser(t, users, "dupe")
		u := &domain.User{ID: uuid.New(), Email: "other@example.com", Username: "dupe", DisplayName: "d", PasswordHash: "x"}
		assert.ErrorIs(t, users.Create(ctx, u), repository.ErrDuplicate)
	})

	t.Run("host roster and guarded removal", func(t *testing.T) {
		host := createUser(t, users, "host1")
		guest := createUser(t, users, "guest1")
		a := createActivity(t, activities, host.ID)

		rosters, err := activities.ListAttendees(ctx, []uuid.UUID{a.ID}, guest.ID)
		require.NoError(t, err)
		require.Len(t, rosters[a.ID], 1)
		assert.True(t, rosters[a.ID][0].IsHost)

		rec := &domain.AttendanceRecord{ActivityID: a.ID, UserID: guest.ID, JoinedAt: time.Now().UTC()}
		require.NoError(t, activities.AddAttendee(ctx, rec))
		assert.ErrorIs(t, activities.AddAttendee(ctx, rec), repository.ErrDuplicate)

		removed, err := activities.RemoveAttendee(ctx, a.ID, host.ID)
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = activities.RemoveAttendee(ctx, a.ID, guest.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		list, err := activities.List(ctx, host.ID, domain.ActivityFilter{IsHost: true})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, a.ID, list[0].ID)
		assert.True(t, list[0].IsGoing)
	})

	t.Run("concurrent attend inserts exactly one record", func(t *testing.T) {
		host := createUser(t, users, "host2")
		guest := createUser(t, users, "guest2")
		a := createActivity(t, activities, host.ID)

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = activities.AddAttendee(ctx, &domain.AttendanceRecord{
					ActivityID: a.ID, UserID: guest.ID, JoinedAt: time.Now().UTC(),
				})
			}(i)
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, repository.ErrDuplicate)
		}
		assert.Equal(t, 1, ok)
	})

	t.Run("follow counters and reconcile", func(t *testing.T) {
		alice := createUser(t, users, "alice")
		bob := createUser(t, users, "bob")

		edge := &domain.FollowEdge{ObserverID: alice.ID, TargetID: bob.ID, CreatedAt: time.Now().UTC()}
		require.NoError(t, follows.Create(ctx, edge))
		assert.ErrorIs(t, follows.Create(ctx, edge), repository.ErrDuplicate)

		got, err := users.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.FollowersCount)

		profiles, err := follows.ListProfiles(ctx, bob.ID, domain.Followers, bob.ID)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.Equal(t, "alice", profiles[0].Username)
		assert.False(t, profiles[0].Following)

		_, err = pool.Exec(ctx, `UPDATE users SET followers_count = 7 WHERE id = $1`, bob.ID)
		require.NoError(t, err)
		fixed, err := follows.ReconcileCounts(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, fixed, int64(1))

		got, err = users.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.FollowersCount)

		removed, err := follows.Delete(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = follows.Delete(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("mutual follows run concurrently", func(t *testing.T) {
		const pairs = 8
		var wg sync.WaitGroup
		errs := make(chan error, 2*pairs)
		people := make([][2]*domain.User, pairs)
		for i := range people {
			a := createUser(t, users, fmt.Sprintf("mutual%da", i))
			b := createUser(t, users, fmt.Sprintf("mutual%db", i))
			people[i] = [2]*domain.User{a, b}
			for _, e := range [][2]uuid.UUID{{a.ID, b.ID}, {b.ID, a.ID}} {
				wg.Add(1)
				go func(observer, target uuid.UUID) {
					defer wg.Done()
					errs <- follows.Create(ctx, &domain.FollowEdge{ObserverID: observer, TargetID: target, CreatedAt: time.Now().UTC()})
				}(e[0], e[1])
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		for _, pair := range people {
			for _, u := range pair {
				got, err := users.GetByID(ctx, u.ID)
				require.NoError(t, err)
				assert.Equal(t, 1, got.FollowersCount, u.Username)
				assert.Equal(t, 1, got.FollowingCount, u.Username)
			}
		}

		wg.Add(2)
		var unfollowErr, followErr error
		hub := createUser(t, users, "mutualhub")
		go func() {
			defer wg.Done()
			_, unfollowErr = follows.Delete(ctx, people[0][0].ID, people[0][1].ID)
		}()
		go func() {
			defer wg.Done()
			followErr = follows.Create(ctx, &domain.FollowEdge{ObserverID: people[0][1].ID, TargetID: hub.ID, CreatedAt: time.Now().UTC()})
		}()
		wg.Wait()
		require.NoError(t, unfollowErr)
		require.NoError(t, followErr)
	})

	t.Run("reconcile alongside follows keeps committed counts", func(t *testing.T) {
		target := createUser(t, users, "popular")
		fans := make([]*domain.User, 12)
		for i := range fans {
			fans[i] = createUser(t, users, fmt.Sprintf("fan%d", i))
		}

		done := make(chan struct{})
		var reconcileErr error
		go func() {
			defer close(done)
			for i := 0; i < 20; i++ {
				if _, err := follows.ReconcileCounts(ctx); err != nil {
					reconcileErr = err
					return
				}
			}
		}()

		var wg sync.WaitGroup
		for _, fan := range fans {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				assert.NoError(t, follows.Create(ctx, &domain.FollowEdge{ObserverID: id, TargetID: target.ID, CreatedAt: time.Now().UTC()}))
			}(fan.ID)
		}
		wg.Wait()
		<-done
		require.NoError(t, reconcileErr)

		got, err := users.GetByID(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, len(fans), got.FollowersCount)

		fixed, err := follows.ReconcileCounts(ctx)
		require.NoError(t, err)
		assert.Zero(t, fixed)
	})

	t.Run("list pages through tied dates", func(t *testing.T) {
		host := createUser(t, users, "tiedhost")
		at := time.Now().UTC().Add(240 * time.Hour).Truncate(time.Microsecond)
		want := make(map[uuid.UUID]bool)
		for i := 0; i < 3; i++ {
			a := &domain.Activity{ID: uuid.New(), Title: "Tied", Category: "music", Date: at, City: "Pula", Venue: "Arena", CreatedAt: at}
			rec := &domain.AttendanceRecord{ActivityID: a.ID, UserID: host.ID, IsHost: true, JoinedAt: at}
			require.NoError(t, activities.CreateWithHost(ctx, a, rec))
			want[a.ID] = true
		}

		filter := domain.ActivityFilter{IsHost: true, Limit: 2}
		seen := make(map[uuid.UUID]bool)
		for {
			page, err := activities.List(ctx, host.ID, filter)
			require.NoError(t, err)
			if len(page) == 0 {
				break
			}
			for _, a := range page {
				assert.False(t, seen[a.ID], "activity listed twice")
				seen[a.ID] = true
			}
			last := page[len(page)-1]
			filter.After, filter.AfterID = &last.Date, &last.ID
		}
		assert.Equal(t, want, seen)
	})

	t.Run("comments keep insertion order on equal timestamps", func(t *testing.T) {
		host := createUser(t, users, "host3")
		a := createActivity(t, activities, host.ID)
		at := time.Now().UTC()

		for _, body := range []string{"first", "second", "third"} {
			c := &domain.Comment{ID: uuid.New(), ActivityID: a.ID, AuthorID: host.ID, Body: body, CreatedAt: at}
			require.NoError(t, comments.Create(ctx, c))
		}

		list, err := comments.ListByActivity(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "first", list[0].Body)
		assert.Equal(t, "third", list[2].Body)
		assert.Equal(t, "host3", list[1].Username)
	})

	t.Run("first photo becomes main", func(t *testing.T) {
		u := createUser(t, users, "photog")
		first := &domain.Photo{ID: uuid.New(), UserID: u.ID, URL: "/a.jpg", StorageKey: "a", CreatedAt: time.Now().UTC()}
		second := &domain.Photo{ID: uuid.New(), UserID: u.ID, URL: "/b.jpg", StorageKey: "b", CreatedAt: time.Now().UTC()}
		require.NoError(t, photos.Create(ctx, first))
		require.NoError(t, photos.Create(ctx, second))
		assert.True(t, first.IsMain)
		assert.False(t, second.IsMain)

		removed, err := photos.Delete(ctx, u.ID, first.ID)
		require.NoError(t, err)
		assert.False(t, removed)

		require.NoError(t, photos.SetMain(ctx, u.ID, second.ID))
		got, err := users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ImageURL)
		assert.Equal(t, "/b.jpg", *got.ImageURL)
	})
}
