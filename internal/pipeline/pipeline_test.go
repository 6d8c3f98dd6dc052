package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskline/taskline/internal/buffer"
	"github.com/taskline/taskline/internal/config"
	"github.com/taskline/taskline/internal/storage"
	"github.com/taskline/taskline/internal/types"
)

// fakeExtractor returns canned candidates, or an error for conversations
// whose text contains failOn.
type fakeExtractor struct {
	mu         sync.Mutex
	candidates []types.CandidateTask
	failOn     string
	calls      []string
}

func (f *fakeExtractor) Extract(ctx context.Context, conversationText, source string) ([]types.CandidateTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, conversationText)
	if f.failOn != "" && strings.Contains(conversationText, f.failOn) {
		return nil, errors.New("extractor unavailable")
	}
	out := make([]types.CandidateTask, len(f.candidates))
	copy(out, f.candidates)
	return out, nil
}

// fakeDeduplicator returns a fixed verdict for every candidate.
type fakeDeduplicator struct {
	mu      sync.Mutex
	verdict types.Verdict
	checked []types.CandidateTask
}

func (f *fakeDeduplicator) CheckDuplicate(ctx context.Context, candidate types.CandidateTask) (*types.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, candidate)
	v := f.verdict
	return &v, nil
}

func (f *fakeDeduplicator) checkedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checked)
}

type testHarness struct {
	pipeline  *Pipeline
	store     storage.Storage
	buf       *buffer.Store
	extractor *fakeExtractor
	dedup     *fakeDeduplicator
	now       time.Time
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	st, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	buf, err := buffer.NewStore(st, cfg)
	require.NoError(t, err)

	extractor := &fakeExtractor{}
	dd := &fakeDeduplicator{}
	p, err := New(buf, st, extractor, dd, cfg)
	require.NoError(t, err)

	h := &testHarness{
		pipeline:  p,
		store:     st,
		buf:       buf,
		extractor: extractor,
		dedup:     dd,
		now:       time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	h.setNow(h.now)
	return h
}

// setNow pins the clock for both the pipeline and the buffer store.
func (h *testHarness) setNow(now time.Time) {
	h.now = now
	h.pipeline.now = func() time.Time { return now }
	h.buf.SetNow(func() time.Time { return now })
}

func msg(channel, thread, sender, body string) types.InboundMessage {
	return types.InboundMessage{Channel: channel, ThreadID: thread, Sender: sender, Body: body}
}

func TestIngest_BuffersWithoutIndicator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.Ingest(ctx, msg("C1", "", "alice", "saw the report"))
	require.NoError(t, err)
	h.setNow(h.now.Add(10 * time.Second))
	conv, err := h.pipeline.Ingest(ctx, msg("C1", "", "alice", "numbers look off"))
	require.NoError(t, err)

	assert.False(t, conv.Finalized)
	assert.Empty(t, h.extractor.calls, "no extraction before the window elapses")

	// After the buffering window the sweeper picks it up.
	h.setNow(h.now.Add(6 * time.Minute))
	h.pipeline.Sweep(ctx, h.now)
	assert.Len(t, h.extractor.calls, 1)
}

func TestIngest_EarlyReleaseProcessesSynchronously(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.extractor.candidates = []types.CandidateTask{
		{Action: "Restart the importer", Priority: types.PriorityHigh, Sender: "bob"},
	}

	_, err := h.pipeline.Ingest(ctx, msg("eng", "T-1", "alice", "importer is stuck"))
	require.NoError(t, err)
	conv, err := h.pipeline.Ingest(ctx, msg("eng", "T-1", "bob", "can you restart it asap"))
	require.NoError(t, err)

	assert.True(t, conv.Finalized, "early release returns the finalized conversation state")
	require.Len(t, h.extractor.calls, 1)
	assert.Contains(t, h.extractor.calls[0], "[2] bob: can you restart it asap")

	tasks, err := h.store.GetRecentTasks(ctx, h.now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Restart the importer", tasks[0].Action)
	assert.Equal(t, int64(1), h.pipeline.CountCreated())
}

func TestIngest_EarlyReleaseWithNothingActionable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Extractor finds nothing: the conversation is still finalized, so the
	// caller can tell the release happened even with zero tasks recorded.
	h.extractor.candidates = nil

	_, err := h.pipeline.Ingest(ctx, msg("eng", "T-1", "alice", "lunch plans"))
	require.NoError(t, err)
	conv, err := h.pipeline.Ingest(ctx, msg("eng", "T-1", "bob", "order asap please"))
	require.NoError(t, err)

	assert.True(t, conv.Finalized)
	assert.Len(t, h.extractor.calls, 1)
	assert.Equal(t, int64(0), h.pipeline.CountCreated())
}

func TestSweep_DuplicateSuppressed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.extractor.candidates = []types.CandidateTask{
		{Action: "Fix the login error", Priority: types.PriorityMedium},
	}
	h.dedup.verdict = types.Verdict{IsDuplicate: true, MatchedTaskID: "t-9", Reasoning: "same underlying problem"}

	_, err := h.pipeline.Ingest(ctx, msg("eng", "T-1", "alice", "login is broken"))
	require.NoError(t, err)
	h.setNow(h.now.Add(6 * time.Minute))
	h.pipeline.Sweep(ctx, h.now)

	tasks, err := h.store.GetRecentTasks(ctx, h.now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, tasks, "duplicate candidates are counted, not persisted")
	assert.Equal(t, int64(1), h.pipeline.CountSuppressed())
	assert.Equal(t, int64(0), h.pipeline.CountCreated())
}

func TestSweep_ProductionBypassesDuplicateCheck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.extractor.candidates = []types.CandidateTask{
		{Action: "Fix Unauthenticated error in xwave-app", Priority: types.PriorityUrgent, Environment: "PRODUCTION"},
	}
	// Even a would-be duplicate verdict cannot suppress a production issue.
	h.dedup.verdict = types.Verdict{IsDuplicate: true, MatchedTaskID: "t-1"}

	_, err := h.pipeline.Ingest(ctx, msg("ops", "T-1", "alice", "prod auth failures"))
	require.NoError(t, err)
	h.setNow(h.now.Add(6 * time.Minute))
	h.pipeline.Sweep(ctx, h.now)

	assert.Equal(t, 0, h.dedup.checkedCount(), "production candidates never reach the duplicate check")
	tasks, err := h.store.GetRecentTasks(ctx, h.now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(1), h.pipeline.CountCreated())
}

func TestSweep_ExtractionFailureIsolated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.extractor.candidates = []types.CandidateTask{
		{Action: "Follow up on the rollout", Priority: types.PriorityLow},
	}
	h.extractor.failOn = "poison"

	_, err := h.pipeline.Ingest(ctx, msg("eng", "T-1", "alice", "poison message"))
	require.NoError(t, err)
	_, err = h.pipeline.Ingest(ctx, msg("eng", "T-2", "bob", "rollout went fine"))
	require.NoError(t, err)

	h.setNow(h.now.Add(6 * time.Minute))
	h.pipeline.Sweep(ctx, h.now)

	// The poisoned conversation fails; the other still produces a task.
	assert.Len(t, h.extractor.calls, 2)
	assert.Equal(t, int64(1), h.pipeline.CountExtractionFailed())
	assert.Equal(t, int64(1), h.pipeline.CountCreated())

	// Failed conversations are still finalized: at-most-once extraction.
	h.extractor.mu.Lock()
	h.extractor.calls = nil
	h.extractor.mu.Unlock()
	h.pipeline.Sweep(ctx, h.now.Add(time.Minute))
	assert.Empty(t, h.extractor.calls, "finalized conversations are not reprocessed")
}

func TestSweep_SecondSweepDoesNotRefinalize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.extractor.candidates = []types.CandidateTask{
		{Action: "Check the backlog", Priority: types.PriorityLow},
	}

	_, err := h.pipeline.Ingest(ctx, msg("eng", "T-1", "alice", "backlog is growing"))
	require.NoError(t, err)

	h.setNow(h.now.Add(6 * time.Minute))
	h.pipeline.Sweep(ctx, h.now)
	h.pipeline.Sweep(ctx, h.now.Add(time.Minute))

	assert.Len(t, h.extractor.calls, 1, "a conversation is extracted exactly once")
	assert.Equal(t, int64(1), h.pipeline.CountCreated())
}

func TestCounts_Consistency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.extractor.candidates = []types.CandidateTask{
		{Action: "Task A", Priority: types.PriorityLow},
		{Action: "Task B", Priority: types.PriorityLow},
	}
	h.dedup.verdict = types.Verdict{IsDuplicate: false}

	_, err := h.pipeline.Ingest(ctx, msg("eng", "T-1", "alice", "two things to do"))
	require.NoError(t, err)
	h.setNow(h.now.Add(6 * time.Minute))
	h.pipeline.Sweep(ctx, h.now)

	attempted := int64(len(h.extractor.candidates))
	assert.LessOrEqual(t, h.pipeline.CountCreated()+h.pipeline.CountSuppressed(), attempted)
	assert.Equal(t, attempted, h.pipeline.CountCreated()+h.pipeline.CountSuppressed())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	st, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer st.Close()

	cfg := config.DefaultConfig()
	buf, err := buffer.NewStore(st, cfg)
	require.NoError(t, err)

	_, err = New(nil, st, &fakeExtractor{}, &fakeDeduplicator{}, cfg)
	assert.Error(t, err)
	_, err = New(buf, st, nil, &fakeDeduplicator{}, cfg)
	assert.Error(t, err)
	_, err = New(buf, st, &fakeExtractor{}, nil, cfg)
	assert.Error(t, err)
}
