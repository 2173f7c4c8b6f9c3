// Package postgres provides a PostgreSQL implementation of
// storage.ThreadStore, for deployments where several server replicas share
// conversation threads. It uses pgx/v5 connection pooling.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/debug"
	"github.com/rhuss/askstream/pkg/storage"
)

// Store is a PostgreSQL-backed ThreadStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.ThreadStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const threadColumns = "id, owner, backend_id, attachments, last_query, turns, created_at, updated_at"

// CreateThread inserts a new thread owned by the context's owner.
func (s *Store) CreateThread(ctx context.Context, t *storage.Thread) error {
	owner := storage.GetOwner(ctx)

	attachments, err := marshalAttachments(t.Handle.Attachments)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	if t.Turns == 0 {
		t.Turns = 1
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO threads (`+threadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		t.ID, owner, t.Handle.BackendID, attachments, t.LastQuery, t.Turns, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting thread: %w", err)
	}
	t.Owner = owner

	debug.Log("storage", "thread created", "id", t.ID)
	return nil
}

// GetThread retrieves a thread by ID.
func (s *Store) GetThread(ctx context.Context, id string) (*storage.Thread, error) {
	query := "SELECT " + threadColumns + " FROM threads WHERE id = $1"
	args := []any{id}
	if owner := storage.GetOwner(ctx); owner != "" {
		query += " AND owner = $2"
		args = append(args, owner)
	}

	t, err := scanThread(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}
	return t, nil
}

// AppendTurn replaces the thread's handle and bumps its turn count.
func (s *Store) AppendTurn(ctx context.Context, id string, handle api.ConversationHandle, query string) (*storage.Thread, error) {
	attachments, err := marshalAttachments(handle.Attachments)
	if err != nil {
		return nil, err
	}

	stmt := `
		UPDATE threads
		SET backend_id = $1, attachments = $2, last_query = $3,
		    turns = turns + 1, updated_at = $4
		WHERE id = $5`
	args := []any{handle.BackendID, attachments, query, time.Now().UTC(), id}
	if owner := storage.GetOwner(ctx); owner != "" {
		stmt += " AND owner = $6"
		args = append(args, owner)
	}
	stmt += " RETURNING " + threadColumns

	t, err := scanThread(s.pool.QueryRow(ctx, stmt, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating thread: %w", err)
	}
	return t, nil
}

// DeleteThread removes a thread.
func (s *Store) DeleteThread(ctx context.Context, id string) error {
	query := "DELETE FROM threads WHERE id = $1"
	args := []any{id}
	if owner := storage.GetOwner(ctx); owner != "" {
		query += " AND owner = $2"
		args = append(args, owner)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListThreads returns the owner's threads, most recently updated first.
// The After cursor is resolved to its (updated_at, id) position; an
// unknown cursor yields an empty page.
func (s *Store) ListThreads(ctx context.Context, opts storage.ListOptions) (*storage.ThreadList, error) {
	owner := storage.GetOwner(ctx)
	limit := opts.PageLimit()

	query := "SELECT " + threadColumns + " FROM threads WHERE ($1 = '' OR owner = $1)"
	args := []any{owner}

	if opts.After != "" {
		query += ` AND (updated_at, id) < (
			SELECT updated_at, id FROM threads WHERE id = $2 AND ($1 = '' OR owner = $1))`
		args = append(args, opts.After)
	}
	query += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT %d", limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	result := &storage.ThreadList{Data: []*storage.Thread{}}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		result.Data = append(result.Data, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}

	if len(result.Data) > limit {
		result.Data = result.Data[:limit]
		result.HasMore = true
	}
	if n := len(result.Data); n > 0 {
		result.FirstID = result.Data[0].ID
		result.LastID = result.Data[n-1].ID
	}
	return result, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanThread(row pgx.Row) (*storage.Thread, error) {
	var t storage.Thread
	var attachments []byte
	if err := row.Scan(
		&t.ID, &t.Owner, &t.Handle.BackendID, &attachments,
		&t.LastQuery, &t.Turns, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &t.Handle.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshaling attachments: %w", err)
		}
	}
	if len(t.Handle.Attachments) == 0 {
		t.Handle.Attachments = nil
	}
	return &t, nil
}

func marshalAttachments(attachments []string) ([]byte, error) {
	if attachments == nil {
		attachments = []string{}
	}
	b, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("marshaling attachments: %w", err)
	}
	return b, nil
}

// isDuplicateKey reports whether err is a PostgreSQL unique violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
