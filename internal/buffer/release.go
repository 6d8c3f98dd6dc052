package buffer

import (
	"strings"

	"github.com/taskline/taskline/internal/types"
)

// ShouldReleaseNow reports whether a conversation should bypass the
// buffering window and finalize immediately. Pure function, no side effects.
//
// A conversation qualifies only with at least 2 messages (a single message
// never has enough context), and only if the most recently appended message
// body contains one of the indicator phrases, matched case-insensitively.
// Earlier messages are not inspected.
func ShouldReleaseNow(conv *types.Conversation, indicators []string) bool {
	if conv == nil || len(conv.Messages) < 2 {
		return false
	}
	body := strings.ToLower(conv.Messages[len(conv.Messages)-1].Body)
	for _, indicator := range indicators {
		if indicator == "" {
			continue
		}
		if strings.Contains(body, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}
