package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// Profile defines the identity and goals of an agent
type Profile struct {
	Name  string   `json:"name" yaml:"name" firestore:"name"`
	Role  string   `json:"role" yaml:"role" firestore:"role"`
	Goals []string `json:"goals" yaml:"goals" firestore:"goals"`
}

// Session is the complete mutable state of one agent interaction. The
// step engine takes a session, advances it one cycle, and returns it;
// no loop state lives outside this structure.
type Session struct {
	ID      SessionID `json:"id" firestore:"id"`
	Profile Profile   `json:"profile" firestore:"profile"`

	Transcript Transcript `json:"transcript" firestore:"transcript"`

	// NextActionCount is the number of remaining iterations allowed
	// without human confirmation
	NextActionCount int `json:"next_action_count" firestore:"next_action_count"`

	LastCommand string `json:"last_command" firestore:"last_command"`
	LastArgs    Args   `json:"last_args" firestore:"-"`
	LastReply   string `json:"last_reply" firestore:"last_reply"`

	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

// NewSession creates a session for the given profile
func NewSession(profile Profile) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        NewSessionID(),
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
