package v1

import (
	"github.com/hrygo/smartlibrarian/ai/librarian"
	"github.com/hrygo/smartlibrarian/store"
)

type conversationJSON struct {
	UID          string `json:"uid"`
	Title        string `json:"title"`
	CreatedTs    int64  `json:"created_ts"`
	UpdatedTs    int64  `json:"updated_ts"`
	ID           int32  `json:"id"`
	MessageCount int32  `json:"message_count"`
}

type messageJSON struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	ID        int64  `json:"id"`
	CreatedTs int64  `json:"created_ts"`
}

type warningJSON struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func convertConversation(c *store.Conversation) *conversationJSON {
	if c == nil {
		return nil
	}
	return &conversationJSON{
		ID:           c.ID,
		UID:          c.UID,
		Title:        c.Title,
		CreatedTs:    c.CreatedTs,
		UpdatedTs:    c.UpdatedTs,
		MessageCount: c.MessageCount,
	}
}

func convertMessages(list []*store.ConversationMessage) []messageJSON {
	out := make([]messageJSON, 0, len(list))
	for _, m := range list {
		out = append(out, messageJSON{ID: m.ID, Role: string(m.Role), Content: m.Content, CreatedTs: m.CreatedTs})
	}
	return out
}

func convertWarning(w *librarian.Warning) *warningJSON {
	if w == nil {
		return nil
	}
	return &warningJSON{Kind: w.Kind.String(), Message: w.Message}
}
