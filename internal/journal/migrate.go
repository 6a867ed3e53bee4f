package journal

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every pending migration under migrations/ using
// goose, the same library kubernaut's go.mod carries for schema
// management; no in-pack example invoked it directly, so the wiring
// here follows goose's own documented API rather than a copied file.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("journal: set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("journal: apply migrations: %w", err)
	}
	return nil
}
