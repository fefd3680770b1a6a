package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const queryDeadlineKey = "mealbox:query_deadline_cancel"

// RegisterQueryTimeout gives every create, query, update, delete and raw
// exec statement its own deadline on top of the caller's context. Row and
// Rows are left alone because their results are read after the callbacks
// return.
func RegisterQueryTimeout(conn *gorm.DB, timeout time.Duration) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if timeout <= 0 {
		return nil
	}

	start := func(tx *gorm.DB) {
		parent := tx.Statement.Context
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := context.WithTimeout(parent, timeout)
		tx.Statement.Context = ctx
		tx.Statement.Settings.Store(queryDeadlineKey, cancel)
	}
	end := func(tx *gorm.DB) {
		if v, ok := tx.Statement.Settings.LoadAndDelete(queryDeadlineKey); ok {
			if cancel, ok := v.(context.CancelFunc); ok {
				cancel()
			}
		}
	}

	cb := conn.Callback()
	hooks := []struct {
		name   string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("*").Register, cb.Create().After("*").Register},
		{"query", cb.Query().Before("*").Register, cb.Query().After("*").Register},
		{"update", cb.Update().Before("*").Register, cb.Update().After("*").Register},
		{"delete", cb.Delete().Before("*").Register, cb.Delete().After("*").Register},
		{"raw", cb.Raw().Before("*").Register, cb.Raw().After("*").Register},
	}
	for _, h := range hooks {
		if err := h.before("mealbox:deadline_start", start); err != nil {
			return fmt.Errorf("register %s deadline: %w", h.name, err)
		}
		if err := h.after("mealbox:deadline_end", end); err != nil {
			return fmt.Errorf("register %s deadline cleanup: %w", h.name, err)
		}
	}
	return nil
}
