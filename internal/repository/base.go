// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"plantspack/internal/database"
	"plantspack/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// readDB serves a read from the replica unless ctx is pinned to the primary
// or the repository is bound to another handle, such as a transaction or a
// test database.
func readDB(ctx context.Context, primary *gorm.DB) *gorm.DB {
	if primary != database.DB || database.PrimaryPinned(ctx) {
		return primary.WithContext(ctx)
	}
	return database.GetReadDB().WithContext(ctx)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
// Postgres errors are matched by SQLSTATE, other drivers by message.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// notFoundOr maps gorm.ErrRecordNotFound to a NOT_FOUND AppError and anything
// else to INTERNAL_ERROR.
func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

func clampPage(limit, offset, def, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// likePattern escapes LIKE wildcards in q and wraps it for a contains match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(q))) + "%"
}

// prefixPattern escapes LIKE wildcards in q for a starts-with match.
func prefixPattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return strings.ToLower(r.Replace(strings.TrimSpace(q))) + "%"
}
