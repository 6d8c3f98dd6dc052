package storage

import (
	"context"
	"time"

	"github.com/taskline/taskline/internal/storage/sqlite"
	"github.com/taskline/taskline/internal/types"
)

// Storage defines the interface for pipeline storage backends
type Storage interface {
	// Conversations
	//
	// AppendMessage performs the find-or-create-and-append as a single
	// transactional step: it locates the unfinalized conversation for key,
	// creating one if none exists, appends msg, and advances last_seen_at.
	// Two near-simultaneous appends to the same key must neither create two
	// conversations nor lose a message.
	AppendMessage(ctx context.Context, key, channel, threadID string, msg types.Message, now time.Time) (*types.Conversation, error)
	GetConversation(ctx context.Context, id string) (*types.Conversation, error)

	// ReadyConversations returns unfinalized conversations whose buffering
	// window has elapsed by age or by silence, oldest first_seen_at first.
	ReadyConversations(ctx context.Context, now time.Time, bufferWindow, silenceThreshold time.Duration) ([]*types.Conversation, error)

	// FinalizeConversation marks a conversation finalized exactly once and
	// stores its rendered text as a derived message in the same transaction,
	// returning the derived message id. A second attempt returns
	// ErrAlreadyFinalized and leaves no derived row behind.
	FinalizeConversation(ctx context.Context, id string, finalizedAt time.Time, content string) (string, error)

	// DeleteFinalizedBefore evicts finalized conversations whose
	// finalized_at is older than cutoff. Returns the number deleted.
	DeleteFinalizedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Derived messages (flattened text records produced at finalization)
	GetDerivedMessage(ctx context.Context, id string) (string, error)

	// Tasks
	CreateTask(ctx context.Context, task *types.Task) error
	GetRecentTasks(ctx context.Context, since time.Time) ([]*types.Task, error)

	// Statistics
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// Lifecycle
	Close() error
}

// ErrAlreadyFinalized is re-exported so callers don't import the sqlite
// package directly.
var ErrAlreadyFinalized = sqlite.ErrAlreadyFinalized

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = sqlite.ErrNotFound

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".taskline/taskline.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".taskline/taskline.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".taskline/taskline.db"
	}
	return sqlite.New(cfg.Path)
}
