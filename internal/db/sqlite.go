package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens the SQLite database at path and applies SchemaSQL.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is its own database.
		database.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := database.ExecContext(ctx, p); err != nil {
			database.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := database.ExecContext(ctx, SchemaSQL); err != nil {
		database.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return database, nil
}
