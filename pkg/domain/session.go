package domain

import "time"

// SessionState is the persisted unit of one editing session.
type SessionState struct {
	SessionID string `json:"session_id"`
	Graph     Graph  `json:"graph"`

	// ChainTail is the last node created through auto-chaining, empty when unset.
	ChainTail string `json:"chain_tail,omitempty"`

	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Sealed holds the encrypted state when the session is persisted through an
	// encrypting store. It is never set on states handed to callers.
	Sealed []byte `json:"sealed,omitempty"`
}

// NewSessionState creates an empty session.
func NewSessionState(sessionID string, meta Metadata) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		SessionID: sessionID,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone deep-copies the session state.
func (s *SessionState) Clone() *SessionState {
	out := *s
	out.Graph = s.Graph.Clone()
	if s.Sealed != nil {
		out.Sealed = append([]byte(nil), s.Sealed...)
	}
	return &out
}
