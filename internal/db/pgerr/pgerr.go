// Package pgerr classifies Postgres errors returned through pgdriver.
package pgerr

import (
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
)

func IsUniqueViolation(err error) bool {
	return Code(err) == UniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return Code(err) == ForeignKeyViolation
}

// Code returns the SQLSTATE of err, or "" when err did not come from Postgres.
func Code(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}
