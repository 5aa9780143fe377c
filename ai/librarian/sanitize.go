package librarian

import (
	"regexp"

	"github.com/hrygo/smartlibrarian/ai/core/llm"
	"github.com/hrygo/smartlibrarian/store"
)

// BinaryPlaceholder replaces long base64-looking runs left in history.
const BinaryPlaceholder = "[binary omitted]"

var binaryRun = regexp.MustCompile(`[A-Za-z0-9+/=]{100,}`)

// Sanitize removes inline media markers and masks any remaining run of 100
// or more base64 characters. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	return binaryRun.ReplaceAllString(StripMarkers(s), BinaryPlaceholder)
}

// SanitizeHistory converts stored messages into sanitized chat turns. The
// stored messages are not modified.
func SanitizeHistory(messages []*store.ConversationMessage) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, llm.Message{Role: string(m.Role), Content: Sanitize(m.Content)})
	}
	return out
}
