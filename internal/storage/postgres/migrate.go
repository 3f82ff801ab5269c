package postgres

import (
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver used by goose
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Direction selects which way Migrate moves the schema.
type Direction string

// Migration directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migrate applies (or rolls back one step of) the embedded schema migrations against dsn.
func Migrate(dsn string, dir Direction) error {
	if dsn == "" {
		return fmt.Errorf("db.dsn is required")
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	db, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open db for migration: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	switch dir {
	case Up:
		err = goose.Up(db, migrationsDir)
	case Down:
		err = goose.Down(db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration direction %q", dir)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}
	return nil
}
