package dedup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/taskline/taskline/internal/types"
)

// AIDeduplicator implements Deduplicator on top of an external semantic
// classifier and the recorded-task window.
type AIDeduplicator struct {
	classifier Classifier
	store      TaskWindow
	config     Config

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// Compile-time check that AIDeduplicator implements Deduplicator
var _ Deduplicator = (*AIDeduplicator)(nil)

// NewAIDeduplicator creates a new deduplicator.
// Returns an error if a dependency is nil or the config is invalid.
func NewAIDeduplicator(classifier Classifier, store TaskWindow, config Config) (*AIDeduplicator, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &AIDeduplicator{
		classifier: classifier,
		store:      store,
		config:     config,
		now:        time.Now,
	}, nil
}

// CheckDuplicate checks the candidate against the trailing task window.
//
// Degradation rules, in order:
//   - storage failure: not-duplicate, cause in Reasoning
//   - empty window: not-duplicate with EmptyWindowReasoning, classifier
//     never called
//   - classifier failure (transport, timeout, unparseable response):
//     not-duplicate, cause in Reasoning
func (d *AIDeduplicator) CheckDuplicate(ctx context.Context, candidate types.CandidateTask) (*types.Verdict, error) {
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("invalid candidate: %w", err)
	}

	now := d.now()
	window, err := d.store.GetRecentTasks(ctx, now.Add(-d.config.Lookback))
	if err != nil {
		log.Printf("[DEDUP] failed to query recent tasks: %v (assuming not duplicate)", err)
		return &types.Verdict{
			IsDuplicate: false,
			Reasoning:   fmt.Sprintf("Failed to query recent tasks: %v", err),
		}, nil
	}

	if len(window) == 0 {
		return &types.Verdict{
			IsDuplicate: false,
			Reasoning:   EmptyWindowReasoning,
		}, nil
	}

	if len(window) > d.config.MaxCandidates {
		window = window[:d.config.MaxCandidates]
	}

	checkCtx, cancel := context.WithTimeout(ctx, d.config.RequestTimeout)
	defer cancel()

	verdict, err := d.classifier.CheckTaskDuplicate(checkCtx, candidate, window, now)
	if err != nil {
		log.Printf("[DEDUP] classifier check failed: %v (assuming not duplicate)", err)
		return &types.Verdict{
			IsDuplicate: false,
			Reasoning:   fmt.Sprintf("Duplicate check error: %v", err),
		}, nil
	}

	if verdict.IsDuplicate {
		log.Printf("[DEDUP] duplicate suppressed: %q matches %s (%s)",
			candidate.Action, verdict.MatchedTaskID, verdict.Reasoning)
	}
	return verdict, nil
}
