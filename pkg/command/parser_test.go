package command

import (
	"testing"

	"kb-assistant-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Command
	}{
		{"plain query", "  what are your hours? ", Command{Kind: KindNone, Query: "what are your hours?"}},
		{"mode", "/mode voice llm", Command{Kind: KindMode, Channel: store.ChannelVoice, Mode: store.ModeLLM}},
		{"mode mixed case", "/MODE Text KB", Command{Kind: KindMode, Channel: store.ChannelText, Mode: store.ModeKB}},
		{"add", "/add opening hours | 9 to 5, Monday to Friday", Command{Kind: KindAdd, Question: "opening hours", Answer: "9 to 5, Monday to Friday"}},
		{"add keeps later pipes", "/add a | b | c", Command{Kind: KindAdd, Question: "a", Answer: "b | c"}},
		{"forget", "/forget", Command{Kind: KindForget}},
		{"status", "/status", Command{Kind: KindStatus}},
		{"help", "/help", Command{Kind: KindHelp}},
		{"unknown slash word is a query", "/etc/hosts?", Command{Kind: KindNone, Query: "/etc/hosts?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []string{
		"/mode",
		"/mode voice",
		"/mode fax kb",
		"/mode text oracle",
		"/add just a question",
		"/add | answer only",
		"/add question |",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
