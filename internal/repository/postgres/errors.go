package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vedran77/activities/internal/repository"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// translate maps constraint violations onto repository errors.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return repository.ErrDuplicate
	case codeForeignKeyViolation:
		return repository.ErrMissingReference
	}
	return err
}
