package librarian

import "github.com/hrygo/smartlibrarian/store"

// reusableReply checks the stored transcript, after the new user message was
// appended, for the shape user(text), assistant(R), user(text) at its tail
// and returns R. Only an immediate repeat qualifies.
func reusableReply(messages []*store.ConversationMessage, text string) (string, bool) {
	n := len(messages)
	if n < 3 {
		return "", false
	}
	latest, reply, previous := messages[n-1], messages[n-2], messages[n-3]
	if latest.Role != store.RoleUser || latest.Content != text {
		return "", false
	}
	if reply.Role != store.RoleAssistant {
		return "", false
	}
	if previous.Role != store.RoleUser || previous.Content != text {
		return "", false
	}
	return reply.Content, true
}
