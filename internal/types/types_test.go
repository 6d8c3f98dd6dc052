package types

import (
	"testing"
	"time"
)

func TestConversationValidate(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Minute)

	tests := []struct {
		name        string
		conv        Conversation
		expectError bool
	}{
		{
			name: "valid unfinalized",
			conv: Conversation{
				ID:          "c1",
				Key:         "eng:general:123",
				Channel:     "eng",
				FirstSeenAt: now,
				LastSeenAt:  later,
			},
			expectError: false,
		},
		{
			name: "valid finalized",
			conv: Conversation{
				ID:               "c2",
				Key:              "eng:t1",
				Channel:          "eng",
				ThreadID:         "t1",
				FirstSeenAt:      now,
				LastSeenAt:       later,
				Finalized:        true,
				FinalizedAt:      &later,
				DerivedMessageID: "m1",
			},
			expectError: false,
		},
		{
			name: "missing key",
			conv: Conversation{
				Channel:     "eng",
				FirstSeenAt: now,
				LastSeenAt:  now,
			},
			expectError: true,
		},
		{
			name: "last_seen before first_seen",
			conv: Conversation{
				Key:         "eng:general:123",
				Channel:     "eng",
				FirstSeenAt: later,
				LastSeenAt:  now,
			},
			expectError: true,
		},
		{
			name: "finalized without timestamp",
			conv: Conversation{
				Key:         "eng:general:123",
				Channel:     "eng",
				FirstSeenAt: now,
				LastSeenAt:  now,
				Finalized:   true,
			},
			expectError: true,
		},
		{
			name: "derived message on open conversation",
			conv: Conversation{
				Key:              "eng:general:123",
				Channel:          "eng",
				FirstSeenAt:      now,
				LastSeenAt:       now,
				DerivedMessageID: "m1",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conv.Validate()
			if tt.expectError && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		input string
		want  Priority
	}{
		{"urgent", PriorityUrgent},
		{"URGENT", PriorityUrgent},
		{" High ", PriorityHigh},
		{"low", PriorityLow},
		{"medium", PriorityMedium},
		{"", PriorityMedium},
		{"p0", PriorityMedium},
	}

	for _, tt := range tests {
		if got := NormalizePriority(tt.input); got != tt.want {
			t.Errorf("NormalizePriority(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCandidateIsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"PRODUCTION", true},
		{" Production ", true},
		{"uat", false},
		{"", false},
		{"prod", false},
	}

	for _, tt := range tests {
		ct := CandidateTask{Action: "fix it", Priority: PriorityHigh, Environment: tt.env}
		if got := ct.IsProduction(); got != tt.want {
			t.Errorf("IsProduction(%q) = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestTaskValidate(t *testing.T) {
	valid := Task{ID: "t1", Action: "Fix deploy script", Priority: PriorityHigh, CreatedAt: time.Now()}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	missing := Task{ID: "t2", Action: "   ", Priority: PriorityHigh}
	if err := missing.Validate(); err == nil {
		t.Errorf("expected error for blank action")
	}

	badPriority := Task{ID: "t3", Action: "Fix it", Priority: Priority("p1")}
	if err := badPriority.Validate(); err == nil {
		t.Errorf("expected error for invalid priority")
	}
}

func TestInboundMessageValidate(t *testing.T) {
	msg := InboundMessage{Channel: "eng", Body: "hello", Sender: "alice"}
	if err := msg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	for _, broken := range []InboundMessage{
		{Body: "hello", Sender: "alice"},
		{Channel: "eng", Sender: "alice"},
		{Channel: "eng", Body: "hello"},
	} {
		if err := broken.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", broken)
		}
	}
}
