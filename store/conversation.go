package store

import "errors"

// DefaultConversationTitle is the title of a conversation before its first
// user message.
const DefaultConversationTitle = "New chat"

// ErrNotFound is returned by drivers when a targeted row does not exist for
// the given owner.
var ErrNotFound = errors.New("not found")

// TitleSource indicates how the conversation title was set.
type TitleSource string

const (
	// TitleSourceDefault is the placeholder title.
	TitleSourceDefault TitleSource = "default"
	// TitleSourceFirstMessage is a title taken from the first user message.
	TitleSourceFirstMessage TitleSource = "first_message"
)

type Conversation struct {
	UID          string
	OwnerID      string
	Title        string
	TitleSource  TitleSource
	CreatedTs    int64
	UpdatedTs    int64
	ID           int32
	MessageCount int32 // populated by ListConversations
}

type FindConversation struct {
	ID      *int32
	UID     *string
	OwnerID *string
}

type UpdateConversation struct {
	Title       *string
	TitleSource *TitleSource
	UpdatedTs   *int64
	// OnlyIfTitleSource guards the update so a title is written at most once.
	OnlyIfTitleSource *TitleSource
	ID                int32
}

type DeleteConversation struct {
	OwnerID string
	ID      int32
}

// MessageRole is the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one append-only transcript entry. Content may
// carry inline media markers.
type ConversationMessage struct {
	Role           MessageRole
	Content        string
	ID             int64
	CreatedTs      int64
	ConversationID int32
}

type FindConversationMessage struct {
	ConversationID int32
}
