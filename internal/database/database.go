// internal/database/database.go
//
// SQLite helpers for the word chain server.
// Responsibilities:
//   - Opening the SQLite database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying the embedded migrations (idempotent, recorded in _migrations).
//
// Only finished-game history, user accounts and daily results live here.
// Running games are never restored from the database.

package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

const memoryDSN = ":memory:"

/*
 * Open opens (and creates if missing) a SQLite database file.
 *
 * - Ensures parent directory exists for relative DSNs (e.g. ./data/app.db).
 * - Configures busy timeout and WAL journaling mode.
 * - Enforces foreign keys.
 * - ":memory:" is pinned to one connection so every query sees the same database.
 */
func Open(dsn string) (*sql.DB, error) {
	if dsn != memoryDSN {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if dsn == memoryDSN {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

/*
 * Migrate applies the embedded SQL migrations.
 *
 * - Uses a _migrations table to track applied files.
 * - Executes each *.sql file in lexical order.
 * - Skips if already applied.
 * - Scripts that manage their own transaction (BEGIN TRANSACTION or
 *   PRAGMA FOREIGN_KEYS=OFF) run outside of an outer transaction.
 */
func Migrate(db *sql.DB) error {
	return migrateFS(db, migrations, "migrations")
}

func migrateFS(db *sql.DB, fsys fs.FS, root string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	names, err := fs.Glob(fsys, root+"/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		key := path.Base(name)
		if ok, err := applied(db, key); err != nil {
			return err
		} else if ok {
			log.Debug().Str("migration", key).Msg("already applied")
			continue
		}
		script, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		if err := apply(db, key, string(script)); err != nil {
			return err
		}
		log.Info().Str("migration", key).Msg("applied")
	}
	return nil
}

func applied(db *sql.DB, key string) (bool, error) {
	var one int
	err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, key).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("query _migrations: %w", err)
	}
}

// apply runs one script and records it. Scripts that open their own
// transaction or toggle foreign keys run outside of ours.
func apply(db *sql.DB, key, script string) error {
	upper := strings.ToUpper(script)
	if strings.Contains(upper, "BEGIN TRANSACTION") || strings.Contains(strings.ReplaceAll(upper, " ", ""), "PRAGMAFOREIGN_KEYS=OFF") {
		if _, err := db.Exec(script); err != nil {
			return fmt.Errorf("apply %s: %w", key, err)
		}
		_, err := db.Exec(`INSERT INTO _migrations(name) VALUES (?)`, key)
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(script); err != nil {
		return fmt.Errorf("apply %s: %w", key, err)
	}
	if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, key); err != nil {
		return fmt.Errorf("record %s: %w", key, err)
	}
	return tx.Commit()
}
