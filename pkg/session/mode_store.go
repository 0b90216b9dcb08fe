// Package session holds per-user routing modes and pending document context.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"kb-assistant-be/internal/repository/memory"
	"kb-assistant-be/pkg/store"
)

var (
	ErrUnknownChannel = errors.New("session: unknown channel")
	ErrUnknownMode    = errors.New("session: unknown mode")
)

// ModeStore is safe for concurrent use. State is in memory only and does not survive a restart.
type ModeStore struct {
	repo *memory.SessionRepository
	now  func() time.Time

	// mu serializes read-modify-write cycles on stored sessions.
	mu sync.Mutex
}

func NewModeStore(repo *memory.SessionRepository) *ModeStore {
	if repo == nil {
		repo = memory.NewSessionRepository()
	}
	return &ModeStore{repo: repo, now: time.Now}
}

// GetMode returns the mode for the channel, kb when the user has never set one.
func (s *ModeStore) GetMode(userID string, channel store.Channel) store.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.repo.Get(userID)
	if !ok {
		return store.ModeKB
	}
	switch channel {
	case store.ChannelVoice:
		return sess.VoiceMode
	case store.ChannelText:
		return sess.TextMode
	}
	return store.ModeKB
}

func (s *ModeStore) SetMode(userID string, channel store.Channel, mode store.Mode) error {
	if !channel.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	s.mutate(userID, func(sess *store.SessionState) {
		if channel == store.ChannelVoice {
			sess.VoiceMode = mode
		} else {
			sess.TextMode = mode
		}
	})
	return nil
}

// SetPendingContext attaches document text that expires after ttl, replacing any earlier document.
func (s *ModeStore) SetPendingContext(userID, fileName, text string, ttl time.Duration) {
	expiresAt := s.now().Add(ttl)
	s.mutate(userID, func(sess *store.SessionState) {
		sess.PendingContext = &store.PendingContext{
			FileName:  fileName,
			Text:      text,
			ExpiresAt: expiresAt,
		}
	})
}

// PendingContext returns the attached document. An expired document is cleared and reported as absent.
func (s *ModeStore) PendingContext(userID string) (store.PendingContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.repo.Get(userID)
	if !ok || sess.PendingContext == nil {
		return store.PendingContext{}, false
	}
	if sess.PendingContext.Expired(s.now()) {
		next := sess.Clone()
		next.PendingContext = nil
		s.repo.Save(next)
		return store.PendingContext{}, false
	}
	return *sess.PendingContext, true
}

func (s *ModeStore) ClearPendingContext(userID string) {
	s.mutate(userID, func(sess *store.SessionState) {
		sess.PendingContext = nil
	})
}

// Snapshot returns a copy of the user's session, with defaults when none exists yet.
func (s *ModeStore) Snapshot(userID string) store.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.repo.Get(userID)
	if !ok {
		return *store.NewSessionState(userID)
	}
	c := sess.Clone()
	if c.PendingContext.Expired(s.now()) {
		c.PendingContext = nil
	}
	return *c
}

// mutate applies fn to a copy of the session and stores the copy, so readers never see a half-written state.
func (s *ModeStore) mutate(userID string, fn func(*store.SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *store.SessionState
	if sess, ok := s.repo.Get(userID); ok {
		next = sess.Clone()
	} else {
		next = store.NewSessionState(userID)
	}
	fn(next)
	next.LastActivity = s.now()
	s.repo.Save(next)
}
