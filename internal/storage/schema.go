package storage

import (
	"context"
	"database/sql"

	_ "embed"
)

// Schema holds the reference DDL for the assistant engine tables.
//
//go:embed schema.sql
var Schema string

// ApplySchema creates the assistant engine tables if they do not exist.
// Intended for tests, local development, and the seed command; production
// deployments run the platform migration pipeline instead.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
