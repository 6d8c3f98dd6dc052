package types

import (
	"fmt"
	"strings"
	"time"
)

// Message is a single raw message inside a conversation. Insertion order is
// significant: messages are kept oldest-first.
type Message struct {
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a buffered, time-bounded group of raw messages sharing a
// channel and (optionally) a thread. It is mutable while Finalized is false;
// after finalization it is immutable and a new message with the same key
// starts a fresh conversation record.
type Conversation struct {
	ID               string     `json:"id"`
	Key              string     `json:"key"`
	Channel          string     `json:"channel"`
	ThreadID         string     `json:"thread_id,omitempty"`
	Messages         []Message  `json:"messages"`
	FirstSeenAt      time.Time  `json:"first_seen_at"`
	LastSeenAt       time.Time  `json:"last_seen_at"`
	Finalized        bool       `json:"finalized"`
	FinalizedAt      *time.Time `json:"finalized_at,omitempty"`
	DerivedMessageID string     `json:"derived_message_id,omitempty"`
}

// Validate checks the conversation's structural invariants.
func (c *Conversation) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("key is required")
	}
	if c.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if c.LastSeenAt.Before(c.FirstSeenAt) {
		return fmt.Errorf("last_seen_at (%v) before first_seen_at (%v)", c.LastSeenAt, c.FirstSeenAt)
	}
	if c.Finalized && c.FinalizedAt == nil {
		return fmt.Errorf("finalized conversation missing finalized_at")
	}
	if !c.Finalized && c.DerivedMessageID != "" {
		return fmt.Errorf("derived_message_id set on unfinalized conversation")
	}
	return nil
}

// Age returns how long the conversation has been open.
func (c *Conversation) Age(now time.Time) time.Duration {
	return now.Sub(c.FirstSeenAt)
}

// Silence returns how long since the last message arrived.
func (c *Conversation) Silence(now time.Time) time.Duration {
	return now.Sub(c.LastSeenAt)
}

// Priority levels assigned to extracted tasks.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// NormalizePriority maps free-form extractor output onto a known level,
// defaulting to medium for anything unrecognized.
func NormalizePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityUrgent:
		return PriorityUrgent
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// EnvProduction is the environment tag that exempts a candidate from the
// duplicate check entirely. Production issues are always recorded.
const EnvProduction = "production"

// CandidateTask is an unpersisted action description produced by extraction,
// pending duplicate review. Fields beyond Action and Priority are optional
// metadata the extractor passes through untouched.
type CandidateTask struct {
	Action         string   `json:"action"`
	Priority       Priority `json:"priority"`
	Sender         string   `json:"sender,omitempty"`
	Environment    string   `json:"environment,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	Confidence     float64  `json:"confidence,omitempty"`
	RelevanceScore float64  `json:"relevance_score,omitempty"`
}

// Validate checks if the candidate has enough substance to process.
func (ct *CandidateTask) Validate() error {
	if strings.TrimSpace(ct.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if !ct.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", ct.Priority)
	}
	return nil
}

// IsProduction reports whether the candidate carries the production
// environment tag (case-insensitive).
func (ct *CandidateTask) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(ct.Environment), EnvProduction)
}

// Task is a persisted, deduplicated actionable item. Immutable after
// creation except for the sync status flag, which the pipeline never touches.
type Task struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Priority    Priority  `json:"priority"`
	Sender      string    `json:"sender,omitempty"`
	Environment string    `json:"environment,omitempty"`
	Synced      bool      `json:"synced"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks if the task has valid field values
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(t.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	return nil
}

// Verdict is the outcome of a duplicate check for a single candidate. It is
// consumed immediately to decide whether to create a Task; the boolean is
// authoritative, MatchedTaskID is best-effort.
type Verdict struct {
	IsDuplicate   bool   `json:"is_duplicate"`
	MatchedTaskID string `json:"matched_task_id,omitempty"`
	Reasoning     string `json:"reasoning"`
}

// InboundMessage is the message event fed into the buffer: channel, optional
// thread id, body, sender, and an optional client-supplied timestamp.
type InboundMessage struct {
	Channel   string     `json:"channel"`
	ThreadID  string     `json:"thread_id,omitempty"`
	Body      string     `json:"body"`
	Sender    string     `json:"sender"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Validate checks the inbound message for required fields.
func (m *InboundMessage) Validate() error {
	if m.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("body is required")
	}
	if m.Sender == "" {
		return fmt.Errorf("sender is required")
	}
	return nil
}

// Statistics provides aggregate counts for the stats command.
type Statistics struct {
	BufferedConversations  int `json:"buffered_conversations"`
	FinalizedConversations int `json:"finalized_conversations"`
	TotalTasks             int `json:"total_tasks"`
	TasksLast48h           int `json:"tasks_last_48h"`
}
