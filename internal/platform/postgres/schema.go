package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// Schema returns the embedded DDL for the service's tables.
func Schema() string {
	return schema
}

// ApplySchema creates the service's tables and indexes. Every statement in
// the embedded schema is idempotent, so applying it repeatedly is safe.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
