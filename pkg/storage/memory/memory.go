// Package memory provides an in-memory storage.ThreadStore for tests,
// stdio sessions and single-replica deployments. Threads are lost when the
// process restarts. Optional LRU eviction bounds memory usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/debug"
	"github.com/rhuss/askstream/pkg/storage"
)

type entry struct {
	thread  *storage.Thread
	lruElem *list.Element
}

// Store is an in-memory ThreadStore with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
	now     func() time.Time
}

var _ storage.ThreadStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used thread is evicted
// when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// CreateThread stores a new thread owned by the context's owner.
func (s *Store) CreateThread(ctx context.Context, t *storage.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[t.ID]; exists {
		return storage.ErrConflict
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	stored := t.Clone()
	stored.Owner = storage.GetOwner(ctx)
	now := s.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	if stored.Turns == 0 {
		stored.Turns = 1
	}

	elem := s.lruList.PushFront(stored.ID)
	s.entries[stored.ID] = &entry{thread: stored, lruElem: elem}
	*t = *stored.Clone()
	return nil
}

// GetThread returns a copy of the thread and marks it recently used.
func (s *Store) GetThread(ctx context.Context, id string) (*storage.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	s.lruList.MoveToFront(e.lruElem)
	return e.thread.Clone(), nil
}

// AppendTurn replaces the thread's handle and bumps its turn count.
func (s *Store) AppendTurn(ctx context.Context, id string, handle api.ConversationHandle, query string) (*storage.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if h := handle.Clone(); h != nil {
		e.thread.Handle = *h
	}
	e.thread.LastQuery = query
	e.thread.Turns++
	e.thread.UpdatedAt = s.now().UTC()
	s.lruList.MoveToFront(e.lruElem)
	return e.thread.Clone(), nil
}

// DeleteThread removes a thread.
func (s *Store) DeleteThread(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	s.lruList.Remove(e.lruElem)
	delete(s.entries, id)
	return nil
}

// ListThreads returns the owner's threads, most recently updated first.
func (s *Store) ListThreads(ctx context.Context, opts storage.ListOptions) (*storage.ThreadList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := storage.GetOwner(ctx)

	var matches []*storage.Thread
	for _, e := range s.entries {
		if owner != "" && e.thread.Owner != owner {
			continue
		}
		matches = append(matches, e.thread)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	if opts.After != "" {
		idx := -1
		for i, t := range matches {
			if t.ID == opts.After {
				idx = i
				break
			}
		}
		if idx >= 0 {
			matches = matches[idx+1:]
		} else {
			matches = nil
		}
	}

	limit := opts.PageLimit()
	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	result := &storage.ThreadList{
		Data:    make([]*storage.Thread, 0, len(matches)),
		HasMore: hasMore,
	}
	for _, t := range matches {
		result.Data = append(result.Data, t.Clone())
	}
	if len(matches) > 0 {
		result.FirstID = matches[0].ID
		result.LastID = matches[len(matches)-1].ID
	}
	return result, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored threads.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// lookup finds an entry visible to the context's owner.
// Must be called with s.mu held.
func (s *Store) lookup(ctx context.Context, id string) (*entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	owner := storage.GetOwner(ctx)
	if owner != "" && e.thread.Owner != owner {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
	debug.Log("storage", "evicted thread", "id", id)
}
