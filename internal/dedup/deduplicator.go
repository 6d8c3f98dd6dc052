// Package dedup decides whether a newly extracted candidate task restates a
// task recorded within the trailing lookback window. The decision itself is
// delegated to an external semantic classifier; this package owns the window
// query, the empty-window short circuit, and the fail-soft policy: duplicate
// suppression must never block task creation because the classifier is
// unavailable.
package dedup

import (
	"context"
	"time"

	"github.com/taskline/taskline/internal/types"
)

// Classifier is the external duplicate classifier capability. Implemented
// by ai.Client in production and by deterministic fakes in tests.
type Classifier interface {
	// CheckTaskDuplicate compares the candidate against a non-empty window
	// of recent tasks and returns the classifier's verdict.
	CheckTaskDuplicate(ctx context.Context, candidate types.CandidateTask, window []*types.Task, now time.Time) (*types.Verdict, error)
}

// TaskWindow is the slice of storage the deduplicator reads: the trailing
// set of recorded tasks.
type TaskWindow interface {
	GetRecentTasks(ctx context.Context, since time.Time) ([]*types.Task, error)
}

// Deduplicator checks candidates for semantic duplicates among recently
// recorded tasks.
type Deduplicator interface {
	// CheckDuplicate returns a verdict for the candidate. It never fails
	// because of classifier or storage trouble: those degrade to a
	// not-duplicate verdict carrying the cause in Reasoning. An error is
	// returned only for an invalid candidate, which is a caller bug.
	CheckDuplicate(ctx context.Context, candidate types.CandidateTask) (*types.Verdict, error)
}

// EmptyWindowReasoning is the fixed verdict reasoning used when there are no
// recent tasks to compare against. The classifier is never called with zero
// candidates.
const EmptyWindowReasoning = "No recent tasks to compare against"
