package provider

// ID identifies a text-generation backend. The set is closed: every ID in
// use has exactly one adapter registered for it.
type ID string

// Known provider IDs.
const (
	OpenAI ID = "openai"
	Gemini ID = "gemini"
	Ollama ID = "ollama"
)

// Role identifies the sender of a message in a conversation.
type Role string

// Role constants for conversation messages.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one turn of a conversation. Order within a slice is
// chronological.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is what the orchestrator hands to an adapter: a fully assembled
// message sequence (system preamble first, when present) addressed to a
// resolved endpoint and model.
type Request struct {
	Endpoint   string
	Credential string
	Model      string
	Messages   []Message
}

// StreamChunk is one element of an adapter's output stream: either a
// non-empty text delta or a terminal error.
type StreamChunk struct {
	Delta string
	Err   error
}
