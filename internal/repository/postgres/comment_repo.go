package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/activities/internal/domain"
)

type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	query := `
		INSERT INTO comments (id, activity_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, c.ID, c.ActivityID, c.AuthorID, c.Body, c.CreatedAt)
	return translate(err)
}

func (r *CommentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	query := `
		SELECT c.id, c.activity_id, c.author_id, c.body, c.created_at,
			u.username, u.display_name, u.image_url
		FROM comments c
		JOIN users u ON c.author_id = u.id
		WHERE c.id = $1`

	var c domain.Comment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ActivityID, &c.AuthorID, &c.Body, &c.CreatedAt,
		&c.Username, &c.DisplayName, &c.Image,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByActivity returns comments oldest first; seq breaks timestamp ties.
func (r *CommentRepo) ListByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Comment, error) {
	query := `
		SELECT c.id, c.activity_id, c.author_id, c.body, c.created_at,
			u.username, u.display_name, u.image_url
		FROM comments c
		JOIN users u ON c.author_id = u.id
		WHERE c.activity_id = $1
		ORDER BY c.created_at, c.seq`

	rows, err := r.pool.Query(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(
			&c.ID, &c.ActivityID, &c.AuthorID, &c.Body, &c.CreatedAt,
			&c.Username, &c.DisplayName, &c.Image,
		); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
