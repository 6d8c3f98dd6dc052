// Package buffer groups raw inbound messages into conversations, decides
// when a conversation is ready for extraction, and finalizes it exactly
// once. Conversations are keyed by channel plus thread, or by channel plus
// a coarse time bucket when no thread exists.
package buffer

import (
	"fmt"
	"time"
)

// ConversationKey resolves the grouping key for an inbound message.
//
// A non-empty threadID groups all messages in that thread for the thread's
// lifetime, regardless of arrival spacing. Without a thread, messages in the
// same channel are grouped by the time bucket containing now. A burst that
// straddles a bucket boundary splits into two conversations; there is no
// look-back merging.
func ConversationKey(channel, threadID string, now time.Time, bucketWidth time.Duration) string {
	if threadID != "" {
		return channel + ":" + threadID
	}
	bucket := now.Unix() / int64(bucketWidth.Seconds())
	return fmt.Sprintf("%s:general:%d", channel, bucket)
}
