package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var Schema string

// ApplySchema creates any missing table. Statements are idempotent so it runs on every start.
func ApplySchema(ctx context.Context, pool DB) error {
	sql := strings.TrimSpace(Schema)
	if sql == "" {
		return fmt.Errorf("db: empty schema")
	}
	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("db: apply schema: %w", err)
	}
	return nil
}
