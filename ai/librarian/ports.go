package librarian

import (
	"context"
	"io"

	"github.com/hrygo/smartlibrarian/ai/core/retrieval"
	"github.com/hrygo/smartlibrarian/store"
)

// Candidate is a retrieved book offered to the model for this turn.
type Candidate = retrieval.Candidate

// Media is a generated image or audio payload.
type Media struct {
	Kind     string // image, audio
	MimeType string
	Data     []byte
}

// Retriever returns up to k candidates for query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Candidate, error)
}

// Moderator reports whether text must be blocked.
type Moderator interface {
	Moderate(ctx context.Context, text string) (bool, error)
}

// CanonicalLookup returns the full summary for a title, "" when unknown.
type CanonicalLookup interface {
	Lookup(ctx context.Context, title string) (string, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Media, error)
}

type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, text, voice string) (*Media, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename, language, prompt string) (string, error)
}

// ConversationStore persists conversations and their append-only transcripts.
// Get returns nil, nil when the conversation does not exist for owner.
// SetTitle only replaces the default title and reports whether it did.
type ConversationStore interface {
	Create(ctx context.Context, owner string) (*store.Conversation, error)
	Get(ctx context.Context, owner string, id int32) (*store.Conversation, error)
	SetTitle(ctx context.Context, id int32, title string) (bool, error)
	AppendMessage(ctx context.Context, id int32, role store.MessageRole, content string) error
	Messages(ctx context.Context, id int32) ([]*store.ConversationMessage, error)
	List(ctx context.Context, owner string) ([]*store.Conversation, error)
	Delete(ctx context.Context, owner string, id int32) error
}
