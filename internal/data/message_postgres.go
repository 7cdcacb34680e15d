package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
)

// Startup connection retry defaults
const (
	DefaultConnectAttempts = 5
	DefaultConnectDelay    = 5 * time.Second
)

// PostgresConfig contains Postgres store configuration
type PostgresConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32

	ConnectAttempts int           // Pings before giving up (0 = DefaultConnectAttempts)
	ConnectDelay    time.Duration // Wait between pings (0 = DefaultConnectDelay)
}

// postgresMessageRepo implements the conversation store on Postgres
type postgresMessageRepo struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	chat_id TEXT NOT NULL,
	user_id TEXT NOT NULL REFERENCES users(user_id),
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, id);
`

// NewPostgresMessageRepo connects to Postgres and ensures the schema exists
func NewPostgresMessageRepo(ctx context.Context, cfg PostgresConfig, botName string) (repo.MessageRepo, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	attempts, delay := cfg.ConnectAttempts, cfg.ConnectDelay
	if attempts <= 0 {
		attempts = DefaultConnectAttempts
	}
	if delay <= 0 {
		delay = DefaultConnectDelay
	}
	if err := pingWithRetry(ctx, pool.Ping, attempts, delay); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	r := &postgresMessageRepo{pool: pool}
	if err := upsertPostgresUser(ctx, pool, domain.BotID, botName); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// pingWithRetry waits for the database to accept connections, as it may still be starting
func pingWithRetry(ctx context.Context, ping func(context.Context) error, attempts int, delay time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertPostgresUser(ctx context.Context, db pgExecer, userID, name string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO users (user_id, name) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name
	`, userID, name)
	if err != nil {
		return fmt.Errorf("%w: saving user: %w", domain.ErrStore, err)
	}
	return nil
}

// Append stores a message and records the author's latest display name
func (r *postgresMessageRepo) Append(ctx context.Context, chatID, authorID, authorName, text string) (int64, error) {
	var seq int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := upsertPostgresUser(ctx, tx, authorID, authorName); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO messages (chat_id, user_id, text)
			VALUES ($1, $2, $3)
			RETURNING id
		`, chatID, authorID, text).Scan(&seq)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: appending message: %w", domain.ErrStore, err)
	}
	return seq, nil
}

// Fetch returns the most recent limit messages of a chat, oldest first
func (r *postgresMessageRepo) Fetch(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, chat_id, user_id, name, text, created_at FROM (
			SELECT m.id, m.chat_id, m.user_id, u.name, m.text, m.created_at
			FROM messages m
			JOIN users u ON u.user_id = m.user_id
			WHERE m.chat_id = $1
			ORDER BY m.id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying messages: %w", domain.ErrStore, err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		var msg domain.Message
		err := row.Scan(&msg.Seq, &msg.ChatID, &msg.AuthorID, &msg.AuthorName, &msg.Text, &msg.CreatedAt)
		return msg, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading messages: %w", domain.ErrStore, err)
	}
	return messages, nil
}

// Close closes the pool
func (r *postgresMessageRepo) Close() error {
	r.pool.Close()
	return nil
}
