package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input data")
	ErrIntegrity    = errors.New("data integrity violation")
	ErrReadOnly     = errors.New("write attempted in read-only unit of work")
)

// IntegrityError is a constraint violation reported by the store.
type IntegrityError struct {
	Constraint string
	Message    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v: %s", ErrIntegrity, e.Message)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// integrityError turns a PostgreSQL class 23 error into *IntegrityError and
// returns nil for anything else.
func integrityError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 || pgErr.Code[:2] != "23" {
		return nil
	}

	msg := pgErr.Message
	if pgErr.Detail != "" {
		msg += ". " + pgErr.Detail
	}

	return &IntegrityError{Constraint: pgErr.ConstraintName, Message: msg}
}
