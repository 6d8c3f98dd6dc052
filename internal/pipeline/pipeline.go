// Package pipeline wires the buffer, the extractor, and the duplicate check
// into the message-to-task flow: received, buffered, finalized, extracted,
// then per candidate duplicate-checked and recorded or suppressed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/taskline/taskline/internal/buffer"
	"github.com/taskline/taskline/internal/config"
	"github.com/taskline/taskline/internal/dedup"
	"github.com/taskline/taskline/internal/storage"
	"github.com/taskline/taskline/internal/types"
)

// Extractor turns a flattened conversation into candidate tasks.
// Implemented by ai.Client in production and by deterministic fakes in
// tests.
type Extractor interface {
	Extract(ctx context.Context, conversationText, source string) ([]types.CandidateTask, error)
}

// Counts tracks pipeline outcomes. Created + Suppressed never exceeds the
// number of candidates attempted; the remainder is extraction failures.
type Counts struct {
	Created          atomic.Int64
	Suppressed       atomic.Int64
	ExtractionFailed atomic.Int64
}

// Pipeline orchestrates the full flow for inbound messages. The immediate
// release path and the sweeper can run concurrently; conversation-level
// races are excluded by the buffer store's per-key serialization, and
// concurrent duplicate checks against an overlapping window are an accepted
// benign race.
type Pipeline struct {
	buf       *buffer.Store
	storage   storage.Storage
	extractor Extractor
	dedup     dedup.Deduplicator
	config    config.Config
	sweeper   *buffer.Sweeper

	counts Counts

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// New creates a pipeline. All collaborators are required.
func New(buf *buffer.Store, st storage.Storage, extractor Extractor, dd dedup.Deduplicator, cfg config.Config) (*Pipeline, error) {
	if buf == nil {
		return nil, fmt.Errorf("buffer store cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	if dd == nil {
		return nil, fmt.Errorf("deduplicator cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &Pipeline{
		buf:       buf,
		storage:   st,
		extractor: extractor,
		dedup:     dd,
		config:    cfg,
		now:       time.Now,
	}
	p.sweeper = buffer.NewSweeper(cfg.SweepInterval, p.Sweep)
	return p, nil
}

// Start launches the background sweeper.
func (p *Pipeline) Start(ctx context.Context) {
	log.Printf("[PIPELINE] starting sweeper (interval %s, window %s, silence %s)",
		p.config.SweepInterval, p.config.BufferWindow, p.config.SilenceThreshold)
	p.sweeper.Start(ctx)
}

// Stop shuts the sweeper down, letting an in-flight sweep finish.
func (p *Pipeline) Stop() {
	p.sweeper.Stop()
}

// Ingest buffers an inbound message. If the conversation qualifies for
// early release it is finalized and processed synchronously; otherwise it
// stays buffered for the sweeper. Returns the conversation the message
// landed in, re-read after an early release so callers see the finalized
// state rather than the pre-release snapshot.
func (p *Pipeline) Ingest(ctx context.Context, in types.InboundMessage) (*types.Conversation, error) {
	conv, err := p.buf.Append(ctx, in)
	if err != nil {
		return nil, err
	}

	if buffer.ShouldReleaseNow(conv, p.config.ReleaseIndicators) {
		log.Printf("[PIPELINE] early release for conversation %s (%d messages)", conv.ID, len(conv.Messages))
		p.processConversation(ctx, conv)
		if fresh, err := p.storage.GetConversation(ctx, conv.ID); err == nil {
			conv = fresh
		}
	}
	return conv, nil
}

// Sweep runs one pass: finalize and process every ready conversation,
// oldest first, then evict finalized conversations past the retention
// horizon. Failure on one conversation never aborts the rest.
func (p *Pipeline) Sweep(ctx context.Context, now time.Time) {
	ready, err := p.buf.Ready(ctx, now)
	if err != nil {
		log.Printf("[SWEEP] failed to list ready conversations: %v", err)
		return
	}

	for _, conv := range ready {
		p.processConversation(ctx, conv)
	}

	evicted, err := p.buf.EvictOld(ctx, now)
	if err != nil {
		log.Printf("[SWEEP] retention eviction failed: %v", err)
	} else if evicted > 0 {
		log.Printf("[SWEEP] evicted %d finalized conversations past retention", evicted)
	}
}

// processConversation finalizes one conversation and routes its candidates.
// The sweeper and the early-release path can both reach the same
// conversation; the loser of that race gets ErrAlreadyFinalized from the
// buffer store and backs off here.
func (p *Pipeline) processConversation(ctx context.Context, conv *types.Conversation) {
	text, err := p.buf.Finalize(ctx, conv)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyFinalized) {
			return
		}
		log.Printf("[PIPELINE] finalize %s failed: %v", conv.ID, err)
		return
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.config.ExtractorTimeout)
	candidates, err := p.extractor.Extract(extractCtx, text, conv.Channel)
	cancel()
	if err != nil {
		// At-most-once extraction: the conversation is already finalized
		// and is not reprocessed. Log and move on to the next one.
		p.counts.ExtractionFailed.Add(1)
		log.Printf("[PIPELINE] extraction failed for conversation %s: %v", conv.ID, err)
		return
	}

	for _, candidate := range candidates {
		if err := p.processCandidate(ctx, candidate); err != nil {
			log.Printf("[PIPELINE] candidate %q from conversation %s: %v", candidate.Action, conv.ID, err)
		}
	}
}

// processCandidate runs the duplicate check and records or suppresses one
// candidate. Production-tagged candidates skip the check entirely: a
// production issue is never silently suppressed, even if textually similar
// to a recent report.
func (p *Pipeline) processCandidate(ctx context.Context, candidate types.CandidateTask) error {
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("invalid candidate: %w", err)
	}

	if candidate.IsProduction() {
		log.Printf("[PIPELINE] production candidate bypasses duplicate check: %q", candidate.Action)
		return p.recordTask(ctx, candidate)
	}

	verdict, err := p.dedup.CheckDuplicate(ctx, candidate)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if verdict.IsDuplicate {
		p.counts.Suppressed.Add(1)
		log.Printf("[PIPELINE] suppressed duplicate %q (matches %s): %s",
			candidate.Action, verdict.MatchedTaskID, verdict.Reasoning)
		return nil
	}

	return p.recordTask(ctx, candidate)
}

func (p *Pipeline) recordTask(ctx context.Context, candidate types.CandidateTask) error {
	task := &types.Task{
		ID:          uuid.New().String(),
		Action:      candidate.Action,
		Priority:    candidate.Priority,
		Sender:      candidate.Sender,
		Environment: candidate.Environment,
		CreatedAt:   p.now().UTC(),
	}
	if err := p.storage.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	p.counts.Created.Add(1)
	log.Printf("[PIPELINE] recorded task %s [%s]: %q", task.ID, task.Priority, task.Action)
	return nil
}

// CountCreated returns how many tasks the pipeline has recorded.
func (p *Pipeline) CountCreated() int64 { return p.counts.Created.Load() }

// CountSuppressed returns how many candidates were dropped as duplicates.
func (p *Pipeline) CountSuppressed() int64 { return p.counts.Suppressed.Load() }

// CountExtractionFailed returns how many conversations failed extraction.
func (p *Pipeline) CountExtractionFailed() int64 { return p.counts.ExtractionFailed.Load() }
