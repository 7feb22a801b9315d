package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// forUpdate adds SELECT ... FOR UPDATE. Dialects without row locks (sqlite) ignore it.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// paginate applies offset and limit for a page
func paginate(db *gorm.DB, page shared.Page) *gorm.DB {
	page = page.Normalize()
	return db.Offset(page.Offset()).Limit(page.PageSize)
}

// notFound maps gorm.ErrRecordNotFound to shared.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// duplicate maps a unique-key violation on insert to ALREADY_EXISTS
func duplicate(err error, what string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainError(shared.CodeAlreadyExists, what+" already exists")
	}
	return err
}

// versionConflict is returned when a version compare-and-swap updates no rows
func versionConflict(what string) error {
	return shared.NewDomainError(shared.CodeConcurrencyConflict, what+" was modified by another transaction")
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// abortedTransaction maps a postgres deadlock or serialization abort to
// CONCURRENCY_CONFLICT. The whole unit of work was rolled back and can run again.
func abortedTransaction(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return shared.NewDomainError(shared.CodeConcurrencyConflict,
			"transaction aborted by the database ("+pgErr.Code+"): "+pgErr.Message)
	}
	return err
}

// checkCAS turns a compare-and-swap update result into an error
func checkCAS(result *gorm.DB, what string) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(what)
	}
	return nil
}
