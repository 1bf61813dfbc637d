// internal/data/schema.go
package data

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Up creates every catalog table that does not exist yet. It is safe to run
// on each start-up; there is no versioned migration history.
func Up(ctx context.Context, db *sqlx.DB, dialect Dialect) error {
	raw, err := schemaFS.ReadFile(dialect.schemaFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", dialect.schemaFile, err)
	}

	// Statements run one at a time so every driver accepts them.
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return nil
}
