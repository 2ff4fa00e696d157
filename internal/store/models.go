package store

import (
	"database/sql"
	"time"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
)

func toNullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func fromNullTime(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(ns.Int64, 0).UTC()
	return &t
}

func fromNullInt64(ns sql.NullInt64) *int64 {
	if !ns.Valid {
		return nil
	}
	v := ns.Int64
	return &v
}

func toNullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// boolToInt converts a boolean to 1/0 for SQLite.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// flagColumn maps an event kind to its delivered-flag column on tasks.
// Column names are fixed here, never taken from input.
func flagColumn(k domain.EventKind) string {
	switch k {
	case domain.KindBeforeStart:
		return "reminded_before"
	case domain.KindOnStart:
		return "reminded_on_start"
	case domain.KindDuringNudge:
		return "nudged_during"
	default:
		return "congratulated"
	}
}
