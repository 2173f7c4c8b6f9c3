package storage

import (
	"context"
	"time"

	"github.com/rhuss/askstream/pkg/api"
)

// Thread is a stored conversation.
type Thread struct {
	ID        string                 `json:"id"`
	Owner     string                 `json:"owner,omitempty"`
	Handle    api.ConversationHandle `json:"handle"`
	LastQuery string                 `json:"last_query"`
	Turns     int                    `json:"turns"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Clone returns a deep copy of t.
func (t *Thread) Clone() *Thread {
	if t == nil {
		return nil
	}
	c := *t
	if h := t.Handle.Clone(); h != nil {
		c.Handle = *h
	}
	return &c
}

// ListOptions controls thread listing. Threads are returned most recently
// updated first.
type ListOptions struct {
	// Limit is the page size (default 20, max 100).
	Limit int
	// After is the ID of the last thread of the previous page.
	After string
}

// PageLimit returns the effective page size.
func (o ListOptions) PageLimit() int {
	switch {
	case o.Limit <= 0:
		return 20
	case o.Limit > 100:
		return 100
	default:
		return o.Limit
	}
}

// ThreadList is one page of threads.
type ThreadList struct {
	Data    []*Thread `json:"data"`
	HasMore bool      `json:"has_more"`
	FirstID string    `json:"first_id,omitempty"`
	LastID  string    `json:"last_id,omitempty"`
}

// ThreadStore persists conversation threads. All operations are scoped to
// the owner from GetOwner(ctx); a thread of another owner behaves as if it
// did not exist.
type ThreadStore interface {
	// CreateThread stores a new thread. The owner is taken from the
	// context. Returns ErrConflict if the ID is taken.
	CreateThread(ctx context.Context, t *Thread) error

	// GetThread returns the thread or ErrNotFound.
	GetThread(ctx context.Context, id string) (*Thread, error)

	// AppendTurn records a completed follow-up: it replaces the handle,
	// sets the last query and increments the turn count.
	AppendTurn(ctx context.Context, id string, handle api.ConversationHandle, query string) (*Thread, error)

	// DeleteThread removes the thread or returns ErrNotFound.
	DeleteThread(ctx context.Context, id string) error

	// ListThreads returns one page of the owner's threads.
	ListThreads(ctx context.Context, opts ListOptions) (*ThreadList, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources.
	Close() error
}
