package buffer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskline/taskline/internal/config"
	"github.com/taskline/taskline/internal/storage"
	"github.com/taskline/taskline/internal/types"
)

// Store owns the set of in-flight conversations. All mutations to a given
// conversation key (append, finalize) are linearized through a per-key
// mutex: finalize is not idempotent, so optimistic retries are not an
// option. Reads go straight to storage.
type Store struct {
	storage storage.Storage
	config  config.Config
	locks   keyedMutex

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// NewStore creates a buffer store on top of the given storage backend.
func NewStore(st storage.Storage, cfg config.Config) (*Store, error) {
	if st == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Store{
		storage: st,
		config:  cfg,
		now:     time.Now,
	}, nil
}

// SetNow overrides the store's clock. Intended for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}

// Append buffers an inbound message into the conversation its key resolves
// to, creating the conversation if no unfinalized one exists. Returns the
// conversation as of after the append.
func (s *Store) Append(ctx context.Context, in types.InboundMessage) (*types.Conversation, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	now := s.now().UTC()
	ts := now
	if in.Timestamp != nil {
		ts = in.Timestamp.UTC()
	}

	key := ConversationKey(in.Channel, in.ThreadID, now, s.config.BucketWidth)

	unlock := s.locks.lock(key)
	defer unlock()

	msg := types.Message{Sender: in.Sender, Body: in.Body, Timestamp: ts}
	conv, err := s.storage.AppendMessage(ctx, key, in.Channel, in.ThreadID, msg, now)
	if err != nil {
		return nil, fmt.Errorf("append to %s: %w", key, err)
	}
	return conv, nil
}

// Finalize renders the conversation into its flattened text, records the
// derived message, and marks the conversation finalized. This happens
// exactly once per conversation: a second attempt returns an error wrapping
// storage.ErrAlreadyFinalized, which callers treat as a concurrency bug,
// not a condition to swallow.
func (s *Store) Finalize(ctx context.Context, conv *types.Conversation) (string, error) {
	if conv == nil {
		return "", fmt.Errorf("conversation cannot be nil")
	}

	unlock := s.locks.lock(conv.Key)
	defer unlock()

	// Re-read under the lock: the immediate-release path and the sweeper
	// can both reach a conversation, and the copy we were handed may be
	// stale by the time the lock is held.
	fresh, err := s.storage.GetConversation(ctx, conv.ID)
	if err != nil {
		return "", fmt.Errorf("finalize %s: %w", conv.ID, err)
	}
	if fresh.Finalized {
		return "", fmt.Errorf("finalize %s: %w", conv.ID, storage.ErrAlreadyFinalized)
	}

	now := s.now().UTC()
	text := Render(fresh)

	if _, err := s.storage.FinalizeConversation(ctx, fresh.ID, now, text); err != nil {
		return "", fmt.Errorf("finalize %s: %w", fresh.ID, err)
	}

	return text, nil
}

// Ready returns unfinalized conversations whose buffering window has
// elapsed, by age or by silence, oldest first.
func (s *Store) Ready(ctx context.Context, now time.Time) ([]*types.Conversation, error) {
	return s.storage.ReadyConversations(ctx, now.UTC(), s.config.BufferWindow, s.config.SilenceThreshold)
}

// EvictOld removes finalized conversations past the retention horizon.
// Returns the number evicted.
func (s *Store) EvictOld(ctx context.Context, now time.Time) (int, error) {
	return s.storage.DeleteFinalizedBefore(ctx, now.UTC().Add(-s.config.RetentionHorizon))
}

// keyedMutex hands out one mutex per conversation key. Entries are
// reference-counted and removed once unused, so the map does not grow with
// the lifetime total of bucketed keys.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*keyEntry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &keyEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
