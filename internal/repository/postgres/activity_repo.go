package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/activities/internal/domain"
)

const defaultListLimit = 20

type ActivityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

func (r *ActivityRepo) CreateWithHost(ctx context.Context, a *domain.Activity, host *domain.AttendanceRecord) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO activities (id, title, description, category, date, city, venue, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			a.ID, a.Title, a.Description, a.Category, a.Date, a.City, a.Venue, a.CreatedAt,
		)
		if err != nil {
			return translate(err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO activity_attendees (activity_id, user_id, is_host, joined_at)
			VALUES ($1, $2, TRUE, $3)`,
			host.ActivityID, host.UserID, host.JoinedAt,
		)
		return translate(err)
	})
}

func (r *ActivityRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	query := `
		SELECT id, title, description, category, date, city, venue, created_at
		FROM activities WHERE id = $1`

	var a domain.Activity
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Title, &a.Description, &a.Category, &a.Date, &a.City, &a.Venue, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List orders by (date, id); the cursor is (filter.After, filter.AfterID).
func (r *ActivityRepo) List(ctx context.Context, viewerID uuid.UUID, filter domain.ActivityFilter) ([]domain.Activity, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT a.id, a.title, a.description, a.category, a.date, a.city, a.venue, a.created_at,
			EXISTS (SELECT 1 FROM activity_attendees g WHERE g.activity_id = a.id AND g.user_id = $1),
			EXISTS (SELECT 1 FROM activity_attendees h WHERE h.activity_id = a.id AND h.user_id = $1 AND h.is_host)
		FROM activities a
		WHERE ($2::timestamptz IS NULL OR (a.date, a.id) > ($2, COALESCE($7::uuid, 'ffffffff-ffff-ffff-ffff-ffffffffffff'::uuid)))
			AND ($3::timestamptz IS NULL OR a.date >= $3)
			AND (NOT $4 OR EXISTS (SELECT 1 FROM activity_attendees g WHERE g.activity_id = a.id AND g.user_id = $1))
			AND (NOT $5 OR EXISTS (SELECT 1 FROM activity_attendees h WHERE h.activity_id = a.id AND h.user_id = $1 AND h.is_host))
		ORDER BY a.date, a.id
		LIMIT $6`

	rows, err := r.pool.Query(ctx, query, viewerID, filter.After, filter.StartDate, filter.IsGoing, filter.IsHost, limit, filter.AfterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Description, &a.Category, &a.Date, &a.City, &a.Venue, &a.CreatedAt,
			&a.IsGoing, &a.IsHost,
		); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (r *ActivityRepo) Update(ctx context.Context, a *domain.Activity) error {
	query := `
		UPDATE activities
		SET title = $1, description = $2, category = $3, date = $4, city = $5, venue = $6
		WHERE id = $7`
	_, err := r.pool.Exec(ctx, query, a.Title, a.Description, a.Category, a.Date, a.City, a.Venue, a.ID)
	return err
}

// Delete cascades to attendance and comments.
func (r *ActivityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	return err
}

func (r *ActivityRepo) AddAttendee(ctx context.Context, rec *domain.AttendanceRecord) error {
	query := `
		INSERT INTO activity_attendees (activity_id, user_id, is_host, joined_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, rec.ActivityID, rec.UserID, rec.IsHost, rec.JoinedAt)
	return translate(err)
}

func (r *ActivityRepo) RemoveAttendee(ctx context.Context, activityID, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM activity_attendees
		WHERE activity_id = $1 AND user_id = $2 AND NOT is_host`,
		activityID, userID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ActivityRepo) GetAttendee(ctx context.Context, activityID, userID uuid.UUID) (*domain.AttendanceRecord, error) {
	query := `
		SELECT activity_id, user_id, is_host, joined_at
		FROM activity_attendees WHERE activity_id = $1 AND user_id = $2`

	var rec domain.AttendanceRecord
	err := r.pool.QueryRow(ctx, query, activityID, userID).Scan(&rec.ActivityID, &rec.UserID, &rec.IsHost, &rec.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *ActivityRepo) ListAttendees(ctx context.Context, activityIDs []uuid.UUID, viewerID uuid.UUID) (map[uuid.UUID][]domain.Attendee, error) {
	rosters := make(map[uuid.UUID][]domain.Attendee, len(activityIDs))
	if len(activityIDs) == 0 {
		return rosters, nil
	}

	query := `
		SELECT aa.activity_id, u.id, u.username, u.display_name, u.image_url, aa.is_host, aa.joined_at,
			EXISTS (SELECT 1 FROM follows f WHERE f.observer_id = $2 AND f.target_id = u.id)
		FROM activity_attendees aa
		JOIN users u ON aa.user_id = u.id
		WHERE aa.activity_id = ANY($1)
		ORDER BY aa.activity_id, aa.is_host DESC, aa.joined_at`

	rows, err := r.pool.Query(ctx, query, activityIDs, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var activityID uuid.UUID
		var a domain.Attendee
		if err := rows.Scan(
			&activityID, &a.UserID, &a.Username, &a.DisplayName, &a.Image, &a.IsHost, &a.JoinedAt, &a.Following,
		); err != nil {
			return nil, err
		}
		rosters[activityID] = append(rosters[activityID], a)
	}
	return rosters, rows.Err()
}
