package buffer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/taskline/taskline/internal/types"
)

// Render flattens a conversation into a single ordered text block. The
// format is stable and human-diffable: a channel/thread header, the span
// between first and last message, then one numbered line per message.
// Multi-line bodies continue on unnumbered lines.
func Render(conv *types.Conversation) string {
	var b strings.Builder

	if conv.ThreadID != "" {
		fmt.Fprintf(&b, "Conversation in #%s (thread %s)\n", conv.Channel, conv.ThreadID)
	} else {
		fmt.Fprintf(&b, "Conversation in #%s\n", conv.Channel)
	}
	fmt.Fprintf(&b, "Duration: %s\n", conv.LastSeenAt.Sub(conv.FirstSeenAt).Round(time.Second))
	fmt.Fprintf(&b, "Messages: %d\n\n", len(conv.Messages))

	for i, msg := range conv.Messages {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, msg.Sender, msg.Body)
	}

	return b.String()
}

// msgLineRegex matches the start of a numbered message line. The sender is
// everything up to the first ": " separator, so a sender may contain bare
// colons ("svc:importer") but not ": " itself; such a sender parses short,
// with the remainder folding into the body.
var msgLineRegex = regexp.MustCompile(`^\[(\d+)\] (.*?): (.*)$`)

// ParseRendered recovers the sender/body list from text produced by Render.
// Timestamps are not rendered and come back zero. Lines that do not start a
// numbered message are treated as continuations of the previous body.
func ParseRendered(text string) []types.Message {
	var messages []types.Message
	inBody := false

	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		if m := msgLineRegex.FindStringSubmatch(line); m != nil {
			messages = append(messages, types.Message{Sender: m[2], Body: m[3]})
			inBody = true
			continue
		}
		if inBody && len(messages) > 0 {
			messages[len(messages)-1].Body += "\n" + line
		}
	}

	return messages
}
