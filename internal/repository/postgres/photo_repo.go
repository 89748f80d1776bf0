package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/activities/internal/domain"
)

type PhotoRepo struct {
	pool *pgxpool.Pool
}

func NewPhotoRepo(pool *pgxpool.Pool) *PhotoRepo {
	return &PhotoRepo{pool: pool}
}

// lockUser serializes photo changes for one user.
func lockUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (r *PhotoRepo) Create(ctx context.Context, p *domain.Photo) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, p.UserID); err != nil {
			return err
		}

		var hasMain bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM photos WHERE user_id = $1 AND is_main)`, p.UserID,
		).Scan(&hasMain); err != nil {
			return err
		}
		p.IsMain = !hasMain

		_, err := tx.Exec(ctx, `
			INSERT INTO photos (id, user_id, url, storage_key, is_main, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, p.UserID, p.URL, p.StorageKey, p.IsMain, p.CreatedAt,
		)
		if err != nil {
			return translate(err)
		}

		if p.IsMain {
			_, err = tx.Exec(ctx, `UPDATE users SET image_url = $1, updated_at = now() WHERE id = $2`, p.URL, p.UserID)
		}
		return err
	})
}

func (r *PhotoRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Photo, error) {
	query := `SELECT id, user_id, url, storage_key, is_main, created_at FROM photos WHERE id = $1`

	var p domain.Photo
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.UserID, &p.URL, &p.StorageKey, &p.IsMain, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PhotoRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Photo, error) {
	query := `
		SELECT id, user_id, url, storage_key, is_main, created_at
		FROM photos WHERE user_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []domain.Photo
	for rows.Next() {
		var p domain.Photo
		if err := rows.Scan(&p.ID, &p.UserID, &p.URL, &p.StorageKey, &p.IsMain, &p.CreatedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *PhotoRepo) SetMain(ctx context.Context, userID, photoID uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		var url string
		err := tx.QueryRow(ctx,
			`SELECT url FROM photos WHERE id = $1 AND user_id = $2`, photoID, userID,
		).Scan(&url)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE photos SET is_main = FALSE WHERE user_id = $1 AND is_main`, userID,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE photos SET is_main = TRUE WHERE id = $1`, photoID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE users SET image_url = $1, updated_at = now() WHERE id = $2`, url, userID)
		return err
	})
}

// Delete removes a non-main photo owned by userID and reports whether a row went away.
func (r *PhotoRepo) Delete(ctx context.Context, userID, photoID uuid.UUID) (bool, error) {
	var removed bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`DELETE FROM photos WHERE id = $1 AND user_id = $2 AND NOT is_main`, photoID, userID,
		)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected() > 0
		return nil
	})
	return removed, err
}
