package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskline/taskline/internal/config"
	"github.com/taskline/taskline/internal/types"
)

func TestConversationKey_Threaded(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	key := ConversationKey("engineering", "T-42", now, 300*time.Second)
	assert.Equal(t, "engineering:T-42", key)

	// Thread keys ignore arrival time entirely.
	later := ConversationKey("engineering", "T-42", now.Add(3*time.Hour), 300*time.Second)
	assert.Equal(t, key, later)
}

func TestConversationKey_Bucketed(t *testing.T) {
	base := time.Unix(1700000100, 0) // 1700000100 / 300 = 5666667

	key := ConversationKey("general", "", base, 300*time.Second)
	assert.Equal(t, "general:general:5666667", key)

	// Same bucket for messages within the same 300s window.
	same := ConversationKey("general", "", base.Add(90*time.Second), 300*time.Second)
	assert.Equal(t, key, same)

	// A burst straddling the boundary splits into two keys.
	next := ConversationKey("general", "", base.Add(300*time.Second), 300*time.Second)
	assert.NotEqual(t, key, next)
}

func conv(bodies ...string) *types.Conversation {
	c := &types.Conversation{Key: "k", Channel: "general"}
	for _, b := range bodies {
		c.Messages = append(c.Messages, types.Message{Sender: "alice", Body: b})
	}
	return c
}

func TestShouldReleaseNow(t *testing.T) {
	indicators := config.DefaultReleaseIndicators

	tests := []struct {
		name string
		conv *types.Conversation
		want bool
	}{
		{"nil conversation", nil, false},
		{"empty conversation", conv(), false},
		{"single message with indicator", conv("can you deploy this asap"), false},
		{"two messages, indicator in last", conv("the deploy failed", "can you look asap"), true},
		{"two messages, no indicator", conv("the deploy failed", "looking into it"), false},
		{"indicator only in earlier message", conv("please deploy this", "done"), false},
		{"case insensitive match", conv("status?", "URGENT: prod is down"), true},
		{"deadline marker", conv("report draft attached", "need final version by EOD"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReleaseNow(tt.conv, indicators))
		})
	}
}

func TestShouldReleaseNow_CustomIndicators(t *testing.T) {
	c := conv("first", "ship it")
	assert.False(t, ShouldReleaseNow(c, []string{"deploy now"}))
	assert.True(t, ShouldReleaseNow(c, []string{"ship it"}))
	assert.False(t, ShouldReleaseNow(c, nil))
}

func renderedConversation() *types.Conversation {
	first := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	return &types.Conversation{
		ID:          "c-1",
		Key:         "engineering:T-42",
		Channel:     "engineering",
		ThreadID:    "T-42",
		FirstSeenAt: first,
		LastSeenAt:  first.Add(90 * time.Second),
		Messages: []types.Message{
			{Sender: "alice", Body: "the importer is stuck again", Timestamp: first},
			{Sender: "bob", Body: "can you restart it please", Timestamp: first.Add(90 * time.Second)},
		},
	}
}

func TestRender_Format(t *testing.T) {
	text := Render(renderedConversation())

	want := "Conversation in #engineering (thread T-42)\n" +
		"Duration: 1m30s\n" +
		"Messages: 2\n" +
		"\n" +
		"[1] alice: the importer is stuck again\n" +
		"[2] bob: can you restart it please\n"
	assert.Equal(t, want, text)
}

func TestRender_Deterministic(t *testing.T) {
	c := renderedConversation()
	assert.Equal(t, Render(c), Render(c))
}

func TestRender_NoThread(t *testing.T) {
	c := renderedConversation()
	c.ThreadID = ""
	assert.Contains(t, Render(c), "Conversation in #engineering\n")
	assert.NotContains(t, Render(c), "thread")
}

func TestParseRendered_RoundTrip(t *testing.T) {
	c := renderedConversation()

	got := ParseRendered(Render(c))

	if assert.Len(t, got, len(c.Messages)) {
		for i, msg := range c.Messages {
			assert.Equal(t, msg.Sender, got[i].Sender)
			assert.Equal(t, msg.Body, got[i].Body)
		}
	}
}

func TestParseRendered_MultilineBody(t *testing.T) {
	c := renderedConversation()
	c.Messages[0].Body = "stack trace:\n  at importer.run\n  at main"

	got := ParseRendered(Render(c))

	if assert.Len(t, got, 2) {
		assert.Equal(t, c.Messages[0].Body, got[0].Body)
		assert.Equal(t, c.Messages[1].Body, got[1].Body)
	}
}

func TestParseRendered_SenderWithColon(t *testing.T) {
	c := renderedConversation()
	c.Messages[0].Sender = "svc:importer"
	c.Messages[0].Body = "restarted: exit code 0"

	got := ParseRendered(Render(c))

	if assert.Len(t, got, 2) {
		assert.Equal(t, "svc:importer", got[0].Sender)
		assert.Equal(t, "restarted: exit code 0", got[0].Body)
	}
}

func TestParseRendered_Garbage(t *testing.T) {
	assert.Empty(t, ParseRendered(""))
	assert.Empty(t, ParseRendered("no numbered lines here\njust prose"))
}
