package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// EsViolacionUnica reports whether err comes from a unique constraint. GORM
// translates it to ErrDuplicatedKey when TranslateError is on; the pgconn
// check covers raw Exec paths that bypass translation.
func EsViolacionUnica(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// SQLite (tests) reports it only in the message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// EsNoEncontrado reports whether err is GORM's record-not-found.
func EsNoEncontrado(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
