package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqliteMessageRepo implements the conversation store on SQLite
type sqliteMessageRepo struct {
	db *sql.DB
}

// NewSQLiteMessageRepo opens (or creates) the conversation store at dbPath
func NewSQLiteMessageRepo(dbPath, botName string) (repo.MessageRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps appends serialized without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL REFERENCES users(user_id),
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, id)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to init schema: %w", err)
		}
	}

	r := &sqliteMessageRepo{db: db}
	if err := r.upsertUser(context.Background(), r.db, domain.BotID, botName); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *sqliteMessageRepo) upsertUser(ctx context.Context, db sqlExecer, userID, name string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (user_id, name) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET name = excluded.name
	`, userID, name)
	if err != nil {
		return fmt.Errorf("%w: failed to save user: %w", domain.ErrStore, err)
	}
	return nil
}

// Append stores a message and records the author's latest display name
func (r *sqliteMessageRepo) Append(ctx context.Context, chatID, authorID, authorName, text string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %w", domain.ErrStore, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.upsertUser(ctx, tx, authorID, authorName); err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (chat_id, user_id, text, created_at)
		VALUES (?, ?, ?, ?)
	`, chatID, authorID, text, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert message: %w", domain.ErrStore, err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read message id: %w", domain.ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit: %w", domain.ErrStore, err)
	}
	return seq, nil
}

// Fetch returns the most recent limit messages of a chat, oldest first
func (r *sqliteMessageRepo) Fetch(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, user_id, name, text, created_at FROM (
			SELECT m.id, m.chat_id, m.user_id, u.name, m.text, m.created_at
			FROM messages m
			JOIN users u ON u.user_id = m.user_id
			WHERE m.chat_id = ?
			ORDER BY m.id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query messages: %w", domain.ErrStore, err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var createdAt int64
		if err := rows.Scan(&msg.Seq, &msg.ChatID, &msg.AuthorID, &msg.AuthorName, &msg.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan message: %w", domain.ErrStore, err)
		}
		msg.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read messages: %w", domain.ErrStore, err)
	}
	return messages, nil
}

// Close closes the database
func (r *sqliteMessageRepo) Close() error {
	return r.db.Close()
}
