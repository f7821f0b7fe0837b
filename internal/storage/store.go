// Package storage provides storage abstractions for the dashboard system.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so repository code runs
// the same inside and outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Engine runs read and write work against the store. Update runs fn in a
// single transaction and schedules a checkpoint once it commits.
type Engine interface {
	View(ctx context.Context, fn func(q Querier) error) error
	Update(ctx context.Context, fn func(q Querier) error) error
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// ErrInvalid is returned for rejected input and broken business rules.
type ErrInvalid struct {
	Message string
}

func (e ErrInvalid) Error() string {
	return e.Message
}

// Invalidf builds an ErrInvalid with a formatted message.
func Invalidf(format string, args ...any) error {
	return ErrInvalid{Message: fmt.Sprintf(format, args...)}
}

// IsInvalid checks if an error is a validation error.
func IsInvalid(err error) bool {
	var inv ErrInvalid
	return errors.As(err, &inv)
}
