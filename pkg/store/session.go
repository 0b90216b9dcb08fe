package store

import "time"

// Mode selects how an utterance is resolved.
type Mode string

// Channel is the kind of input an utterance arrived on. Each channel has its own mode.
type Channel string

const (
	ModeKB  Mode = "kb"  // knowledge first, LLM and default as fallbacks
	ModeLLM Mode = "llm" // LLM first, straight to default on failure

	ChannelVoice Channel = "voice"
	ChannelText  Channel = "text"
)

func (m Mode) Valid() bool {
	return m == ModeKB || m == ModeLLM
}

func (c Channel) Valid() bool {
	return c == ChannelVoice || c == ChannelText
}

// PendingContext is document text attached by the user that the LLM stage may use until it expires.
type PendingContext struct {
	FileName  string    `json:"file_name"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (p *PendingContext) Expired(now time.Time) bool {
	return p == nil || !now.Before(p.ExpiresAt)
}

// SessionState is the per-user in-memory state. It is created lazily and lives for the process lifetime.
type SessionState struct {
	UserID    string `json:"user_id"`
	VoiceMode Mode   `json:"voice_mode"`
	TextMode  Mode   `json:"text_mode"`

	PendingContext *PendingContext `json:"pending_context,omitempty"`

	LastActivity time.Time `json:"last_activity"`
}

// NewSessionState returns a session with both channels in knowledge-first mode.
func NewSessionState(userID string) *SessionState {
	return &SessionState{
		UserID:    userID,
		VoiceMode: ModeKB,
		TextMode:  ModeKB,
	}
}

// Clone returns a deep copy so readers never share the stored pointer.
func (s *SessionState) Clone() *SessionState {
	c := *s
	if s.PendingContext != nil {
		pc := *s.PendingContext
		c.PendingContext = &pc
	}
	return &c
}
