package domain

import "time"

// SessionTurn is one user/assistant exchange kept for conversational
// grounding of follow-up questions.
type SessionTurn struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the per-caller conversation state. The retrieval core reads
// and updates it within a single call but never owns its persistence:
// lifecycle (create, mutate per turn, delete) belongs to the caller.
type Session struct {
	ID             string        `json:"id"`
	CurrentContext string        `json:"current_context"`
	LastBundle     ContextBundle `json:"last_bundle"`
	Turns          []SessionTurn `json:"turns"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// HasPriorContext reports whether a previous turn left reusable context.
func (s *Session) HasPriorContext() bool {
	return s != nil && s.CurrentContext != ""
}
