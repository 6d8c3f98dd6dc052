package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskline/taskline/internal/types"
)

func TestBuildDuplicateCheckPrompt(t *testing.T) {
	now := time.Now()
	candidate := types.CandidateTask{
		Action:   "Fix Unauthenticated error in PRODUCTION xwave-app",
		Priority: types.PriorityUrgent,
		Sender:   "alice",
	}
	window := []*types.Task{
		{ID: "t-1", Action: "Fix Unauthenticated error in UAT xwave-app", Priority: types.PriorityHigh, Sender: "bob", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "t-2", Action: "Prepare quarterly report", Priority: types.PriorityLow, Sender: "carol", CreatedAt: now.Add(-26 * time.Hour)},
	}

	prompt := buildDuplicateCheckPrompt(candidate, window, now)

	// Candidate details
	assert.Contains(t, prompt, "Fix Unauthenticated error in PRODUCTION xwave-app")
	assert.Contains(t, prompt, "urgent")
	assert.Contains(t, prompt, "alice")

	// Enumerated, age-annotated window entries
	assert.Contains(t, prompt, "[1] ID: t-1")
	assert.Contains(t, prompt, "[2] ID: t-2")
	assert.Contains(t, prompt, "3h ago")
	assert.Contains(t, prompt, "1d ago")

	// The decision policy the classifier is expected to honor
	assert.Contains(t, prompt, "Same underlying problem or goal means DUPLICATE")
	assert.Contains(t, prompt, "DIFFERENT environment is NOT a duplicate")
	assert.Contains(t, prompt, "escalation")
	assert.Contains(t, prompt, "older than 24 hours")

	// Response contract
	assert.Contains(t, prompt, `"is_duplicate"`)
	assert.Contains(t, prompt, `"duplicate_id"`)
	assert.Contains(t, prompt, `"reasoning"`)
}

func TestBuildExtractionPrompt(t *testing.T) {
	prompt := buildExtractionPrompt("[1] alice: fix the build", "channel eng")

	assert.Contains(t, prompt, "channel eng")
	assert.Contains(t, prompt, "[1] alice: fix the build")
	assert.Contains(t, prompt, "urgent, high, medium, low")
	assert.Contains(t, prompt, "empty array")
}

func TestRelativeAge(t *testing.T) {
	now := time.Now()
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{47 * time.Hour, "47h ago"},
		{72 * time.Hour, "3d ago"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeAge(now.Add(-tt.age), now))
	}
}
