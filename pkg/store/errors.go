// Package store persists incidents, their lifecycle events and service
// configurations in PostgreSQL.
package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique key is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition indicates a lifecycle move the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
