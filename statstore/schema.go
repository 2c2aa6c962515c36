package statstore

import (
	"context"
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the tables and indexes if they do not exist yet.
// Safe to run on every startup.
func (db *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, schemaSQL)
	return err
}
