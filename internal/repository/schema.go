package repository

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS donations (
	id             BIGSERIAL PRIMARY KEY,
	amount         NUMERIC(12,2) NOT NULL CHECK (amount > 0),
	phone          TEXT NOT NULL,
	receipt_number TEXT NOT NULL UNIQUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the donations table when it does not exist yet.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
