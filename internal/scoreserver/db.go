// apps/go-server/internal/scoreserver/db.go
//
// SQLite persistence for the development score backend.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - User and best-value queries used by the HTTP handlers.

package scoreserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// ErrUserExists is returned by createUser for a taken username.
var ErrUserExists = errors.New("username already exists")

// openDB opens (and creates if missing) a SQLite database file.
func openDB(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// One connection keeps PRAGMA foreign_keys in effect for every query.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// migrate applies every *.sql file of migrations in lexical order, each in
// its own transaction, skipping files already recorded.
func migrate(db *sql.DB, migrations fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		body, err := fs.ReadFile(migrations, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

/* ------------------------------- users ---------------------------------- */

func createUser(ctx context.Context, db *sql.DB, username, hash string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?,?,?)`,
		username, hash, time.Now().UTC().Format(time.RFC3339))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrUserExists
	}
	return err
}

func passwordHash(ctx context.Context, db *sql.DB, username string) (string, error) {
	var h string
	err := db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE username=?`, username).Scan(&h)
	return h, err
}

func userExists(ctx context.Context, db *sql.DB, username string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=?`, username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

/* ------------------------------- scores --------------------------------- */

func putScore(ctx context.Context, db *sql.DB, username string, k score.Kind, value float64) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO scores (username, game, score, updated_at) VALUES (?,?,?,?)
        ON CONFLICT(username, game) DO UPDATE SET score=excluded.score, updated_at=excluded.updated_at`,
		username, string(k), value, time.Now().UTC().Format(time.RFC3339))
	return err
}

// userRow loads one user's best values; sql.ErrNoRows if the user is unknown.
func userRow(ctx context.Context, db *sql.DB, username string) (score.PlayerScoreRow, error) {
	ok, err := userExists(ctx, db, username)
	if err != nil {
		return score.PlayerScoreRow{}, err
	}
	if !ok {
		return score.PlayerScoreRow{}, sql.ErrNoRows
	}
	rows, err := allRows(ctx, db, `WHERE u.username=?`, username)
	if err != nil {
		return score.PlayerScoreRow{}, err
	}
	if len(rows) == 0 {
		return score.PlayerScoreRow{Username: username, Scores: map[score.Kind]any{}}, nil
	}
	return rows[0], nil
}

// allRows returns one PlayerScoreRow per user, ordered by username.
func allRows(ctx context.Context, db *sql.DB, where string, args ...any) ([]score.PlayerScoreRow, error) {
	rs, err := db.QueryContext(ctx, `
        SELECT u.username, s.game, s.score
        FROM users u LEFT JOIN scores s ON s.username = u.username
        `+where+`
        ORDER BY u.username`, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	out := []score.PlayerScoreRow{}
	for rs.Next() {
		var (
			user  string
			game  sql.NullString
			value sql.NullFloat64
		)
		if err := rs.Scan(&user, &game, &value); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Username != user {
			out = append(out, score.PlayerScoreRow{Username: user, Scores: map[score.Kind]any{}})
		}
		if game.Valid && value.Valid {
			out[len(out)-1].Scores[score.Kind(game.String)] = value.Float64
		}
	}
	return out, rs.Err()
}

// topRows returns the best limit players of k in k's direction.
func topRows(ctx context.Context, db *sql.DB, k score.Kind, limit int) ([]score.PlayerScoreRow, error) {
	order := "ASC"
	if k.Direction() == score.HigherIsBetter {
		order = "DESC"
	}
	rs, err := db.QueryContext(ctx, `
        SELECT username, score FROM scores
        WHERE game=?
        ORDER BY score `+order+`, username ASC
        LIMIT ?`, string(k), limit)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	out := make([]score.PlayerScoreRow, 0, limit)
	for rs.Next() {
		var (
			user  string
			value float64
		)
		if err := rs.Scan(&user, &value); err != nil {
			return nil, err
		}
		out = append(out, score.PlayerScoreRow{Username: user, Scores: map[score.Kind]any{k: value}})
	}
	return out, rs.Err()
}
