package database

import (
	"database/sql"
	"errors"
	"time"

	"modernc.org/sqlite"
)

// Timestamps are stored as UTC text so they order lexicographically.
const timeLayout = "2006-01-02T15:04:05Z"

type scannable interface {
	Scan(dest ...any) error
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// fmtNullTime renders a nullable timestamp as a driver value.
func fmtNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func timeValue(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullString maps the empty string to NULL so uniqueness constraints skip it.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// sqliteErrUnique is the SQLITE_CONSTRAINT_UNIQUE extended result code.
const sqliteErrUnique = 2067

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqliteErrUnique
}
