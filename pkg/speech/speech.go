// Package speech defines the speech collaborators. Both may take seconds and are always called through the
// operations governor.
package speech

import (
	"context"
	"errors"
)

var (
	ErrEmptyTranscript = errors.New("speech: empty transcript")
	// ErrNotConfigured is returned when voice input arrives but no speech backend is set up.
	ErrNotConfigured = errors.New("speech: not configured")
)

type SpeechToText interface {
	// Transcribe converts audio in the given container format ("ogg", "mp3", "wav", "webm") to text.
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

type TextToSpeech interface {
	// Synthesize returns encoded audio for text. Implementations truncate overly long input.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
