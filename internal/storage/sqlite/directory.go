// Package sqlite keeps the directory of permanent rooms.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Directory stores permanent rooms. Temporary rooms never reach it.
type Directory struct {
	db *sql.DB
}

// Open prepares a SQLite database at the given path and ensures the schema exists.
func Open(path string) (*Directory, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("module", "storage.sqlite").Str("path", path).Msg("room directory opened")
	return &Directory{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			name TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_created ON rooms(created_at);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (d *Directory) Lookup(ctx context.Context, name domain.RoomName) (domain.Room, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT name, title, description, owner, created_at FROM rooms WHERE name = ?`, string(name))
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, &domain.RoomNotFoundError{Name: name}
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("lookup room: %w", err)
	}
	return room, nil
}

func (d *Directory) Create(ctx context.Context, room domain.Room) (domain.Room, error) {
	if err := domain.ValidateRoomName(room.Name); err != nil {
		return domain.Room{}, err
	}
	if room.Temporary {
		return domain.Room{}, errors.New("temporary rooms are not stored")
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Room{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE name = ?`, string(room.Name)).Scan(&exists)
	switch {
	case err == nil:
		return domain.Room{}, domain.ErrRoomExists
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Room{}, fmt.Errorf("check room: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (name, title, description, owner, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(room.Name), room.Title, room.Description, room.Owner, room.CreatedAt,
	); err != nil {
		return domain.Room{}, fmt.Errorf("insert room: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Room{}, fmt.Errorf("commit: %w", err)
	}
	log.Info().Str("module", "storage.sqlite").Str("room", string(room.Name)).Msg("room created")
	return room, nil
}

func (d *Directory) List(ctx context.Context) ([]domain.Room, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT name, title, description, owner, created_at FROM rooms ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// Close releases database resources.
func (d *Directory) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (domain.Room, error) {
	var (
		room domain.Room
		name string
	)
	if err := s.Scan(&name, &room.Title, &room.Description, &room.Owner, &room.CreatedAt); err != nil {
		return domain.Room{}, err
	}
	room.Name = domain.RoomName(name)
	return room, nil
}
