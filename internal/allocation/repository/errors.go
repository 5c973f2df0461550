package repository

import (
	"errors"
	"fmt"

	"leadrouter_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	leadNotFoundMsg       = "lead not found"
	companyNotFoundMsg    = "company not found"
	storeNotFoundMsg      = "store not found"
	locationNotFoundMsg   = "store location not found"
	contractNotFoundMsg   = "contract not found"
	noActiveContractMsg   = "store has no active contract"
	assignmentNotFoundMsg = "assignment not found"
	warrantyNotFoundMsg   = "warranty not found"
	segmentNotFoundMsg    = "default segment not configured"
)

// PostgreSQL error codes the allocation store reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// mapError turns driver errors into typed errors. Unknown errors are wrapped
// with the operation name so logs keep their origin.
func mapError(op string, err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) && notFoundMsg != "" {
		return apperr.NotFound(notFoundMsg).WithOp(op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, conflictMessage(pgErr), err).WithOp(op)
		case pgForeignKeyViolation:
			return apperr.Wrap(apperr.KindValidation, "referenced record does not exist", err).WithOp(op)
		case pgCheckViolation:
			return apperr.Wrap(apperr.KindValidation, "value violates "+pgErr.ConstraintName, err).WithOp(op)
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return apperr.Wrap(apperr.KindConcurrency, "record is being modified concurrently, retry with fresh data", err).WithOp(op)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func conflictMessage(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case "contracts_one_active_per_owner":
		return "owner already has an active contract"
	case "store_locations_single_main":
		return "store already has a main location"
	case "lead_warranties_one_open_claim":
		return "assignment already has an open warranty claim"
	default:
		return "record already exists"
	}
}
