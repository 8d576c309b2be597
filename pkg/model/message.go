package model

// Role identifies the author of a transcript message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged entry in a conversation transcript
type Message struct {
	Role    Role   `json:"role" firestore:"role"`
	Content string `json:"content" firestore:"content"`
}

// NewMessage creates a message with the given role and content
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Transcript is the ordered conversation history of a session.
// Insertion order is meaningful and never reordered.
type Transcript []Message

// Append adds a message to the end of the transcript
func (t Transcript) Append(role Role, content string) Transcript {
	return append(t, NewMessage(role, content))
}

// Truncate drops the oldest messages so that at most limit remain.
// A non-positive limit leaves the transcript unchanged.
func (t Transcript) Truncate(limit int) Transcript {
	if limit <= 0 || len(t) <= limit {
		return t
	}
	return t[len(t)-limit:]
}

// Tail returns up to n of the most recent messages
func (t Transcript) Tail(n int) Transcript {
	if n <= 0 || len(t) <= n {
		return t
	}
	return t[len(t)-n:]
}
