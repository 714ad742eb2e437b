package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/slotbook/slotbook/services/booking-service/internal/engine"
)

// Postgres error codes the repositories translate into the engine taxonomy.
const (
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
	codeLockNotAvailable   = "55P03"
)

// translate maps a pgx error to the engine's sentinels. conflict is the
// sentinel to use for an exclusion violation, which differs between the
// window and appointment tables.
func translate(err error, conflict error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", engine.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeExclusionViolation:
			return fmt.Errorf("%w: %s", conflict, pgErr.ConstraintName)
		case codeLockNotAvailable:
			return fmt.Errorf("%w: %s", engine.ErrTimeout, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %w", engine.ErrStorage, err)
}
