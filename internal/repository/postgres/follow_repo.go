package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/activities/internal/domain"
)

type FollowRepo struct {
	pool *pgxpool.Pool
}

func NewFollowRepo(pool *pgxpool.Pool) *FollowRepo {
	return &FollowRepo{pool: pool}
}

func (r *FollowRepo) Create(ctx context.Context, edge *domain.FollowEdge) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO follows (observer_id, target_id, created_at)
			VALUES ($1, $2, $3)`,
			edge.ObserverID, edge.TargetID, edge.CreatedAt,
		)
		if err != nil {
			return translate(err)
		}
		return adjustCounts(ctx, tx, edge.ObserverID, edge.TargetID, 1)
	})
}

func (r *FollowRepo) Delete(ctx context.Context, observerID, targetID uuid.UUID) (bool, error) {
	var removed bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM follows WHERE observer_id = $1 AND target_id = $2`,
			observerID, targetID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		removed = true
		return adjustCounts(ctx, tx, observerID, targetID, -1)
	})
	return removed, err
}

// adjustCounts locks both user rows in id order before touching the
// counters, so mutual follows and unfollows cannot deadlock. Counters clamp at
// zero so drift never blocks an unfollow.
func adjustCounts(ctx context.Context, tx pgx.Tx, observerID, targetID uuid.UUID, delta int) error {
	if _, err := tx.Exec(ctx,
		`SELECT id FROM users WHERE id = ANY($1) ORDER BY id FOR NO KEY UPDATE`,
		[]uuid.UUID{observerID, targetID},
	); err != nil {
		return fmt.Errorf("locking users: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users SET
			following_count = GREATEST(following_count + CASE WHEN id = $2 THEN $1 ELSE 0 END, 0),
			followers_count = GREATEST(followers_count + CASE WHEN id = $3 THEN $1 ELSE 0 END, 0)
		WHERE id IN ($2, $3)`,
		delta, observerID, targetID,
	); err != nil {
		return fmt.Errorf("updating follow counts: %w", err)
	}
	return nil
}

func (r *FollowRepo) Exists(ctx context.Context, observerID, targetID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE observer_id = $1 AND target_id = $2)`,
		observerID, targetID,
	).Scan(&exists)
	return exists, err
}

// ListProfiles resolves every edge endpoint in one query, ordered by edge creation.
func (r *FollowRepo) ListProfiles(ctx context.Context, userID uuid.UUID, direction domain.FollowDirection, viewerID uuid.UUID) ([]domain.Profile, error) {
	var join, where string
	switch direction {
	case domain.Followers:
		join, where = "f.observer_id = u.id", "f.target_id = $1"
	case domain.Following:
		join, where = "f.target_id = u.id", "f.observer_id = $1"
	default:
		return nil, fmt.Errorf("unknown follow direction %q", direction)
	}

	query := fmt.Sprintf(`
		SELECT u.username, u.display_name, u.bio, u.image_url, u.followers_count, u.following_count,
			EXISTS (SELECT 1 FROM follows v WHERE v.observer_id = $2 AND v.target_id = u.id)
		FROM follows f
		JOIN users u ON %s
		WHERE %s
		ORDER BY f.created_at, u.username`, join, where)

	rows, err := r.pool.Query(ctx, query, userID, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(
			&p.Username, &p.DisplayName, &p.Bio, &p.Image, &p.FollowersCount, &p.FollowingCount, &p.Following,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ReconcileCounts rewrites drifted counters from the edges. The SHARE lock
// holds off edge writes for the pass, so a follow committing mid-pass cannot
// be overwritten with a stale count. Follow writes touch follows before users,
// which keeps the two lock orders compatible.
func (r *FollowRepo) ReconcileCounts(ctx context.Context) (int64, error) {
	query := `
		UPDATE users u
		SET followers_count = c.followers, following_count = c.following
		FROM (
			SELECT x.id,
				COALESCE(fr.n, 0) AS followers,
				COALESCE(fg.n, 0) AS following
			FROM users x
			LEFT JOIN (SELECT target_id, count(*) AS n FROM follows GROUP BY target_id) fr ON fr.target_id = x.id
			LEFT JOIN (SELECT observer_id, count(*) AS n FROM follows GROUP BY observer_id) fg ON fg.observer_id = x.id
		) c
		WHERE u.id = c.id
			AND (u.followers_count <> c.followers OR u.following_count <> c.following)`

	var fixed int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE follows IN SHARE MODE`); err != nil {
			return fmt.Errorf("locking follows: %w", err)
		}
		tag, err := tx.Exec(ctx, query)
		if err != nil {
			return err
		}
		fixed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return fixed, nil
}
