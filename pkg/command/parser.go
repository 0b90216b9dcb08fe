// Package command parses slash commands typed into the text channel.
package command

import (
	"errors"
	"fmt"
	"strings"

	"kb-assistant-be/pkg/store"
)

type Kind string

const (
	KindNone   Kind = ""       // not a command, resolve as a query
	KindMode   Kind = "mode"   // /mode <voice|text> <kb|llm>
	KindAdd    Kind = "add"    // /add <question> | <answer>
	KindForget Kind = "forget" // /forget drops the pending document
	KindStatus Kind = "status" // /status
	KindHelp   Kind = "help"   // /help
)

var ErrMalformed = errors.New("command: malformed")

// Command is the parsed form of one text message.
type Command struct {
	Kind Kind

	Channel store.Channel
	Mode    store.Mode

	Question string
	Answer   string

	// Query is the original text when Kind is KindNone.
	Query string
}

// Usage lists the supported commands.
const Usage = "/mode <voice|text> <kb|llm>, /add <question> | <answer>, /forget, /status, /help"

// Parse recognizes a leading slash command. Unknown slash words are treated as ordinary queries so a user can still
// ask "/etc/hosts?". Known commands with bad arguments return ErrMalformed.
func Parse(raw string) (Command, error) {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "/") {
		return Command{Kind: KindNone, Query: text}, nil
	}

	name, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/mode":
		return parseMode(rest)
	case "/add":
		return parseAdd(rest)
	case "/forget":
		return Command{Kind: KindForget}, nil
	case "/status":
		return Command{Kind: KindStatus}, nil
	case "/help", "/start":
		return Command{Kind: KindHelp}, nil
	default:
		return Command{Kind: KindNone, Query: text}, nil
	}
}

func parseMode(rest string) (Command, error) {
	parts := strings.Fields(strings.ToLower(rest))
	if len(parts) != 2 {
		return Command{}, fmt.Errorf("%w: usage /mode <voice|text> <kb|llm>", ErrMalformed)
	}

	channel, mode := store.Channel(parts[0]), store.Mode(parts[1])
	if !channel.Valid() {
		return Command{}, fmt.Errorf("%w: unknown channel %q", ErrMalformed, parts[0])
	}
	if !mode.Valid() {
		return Command{}, fmt.Errorf("%w: unknown mode %q", ErrMalformed, parts[1])
	}
	return Command{Kind: KindMode, Channel: channel, Mode: mode}, nil
}

func parseAdd(rest string) (Command, error) {
	question, answer, ok := strings.Cut(rest, "|")
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if !ok || question == "" || answer == "" {
		return Command{}, fmt.Errorf("%w: usage /add <question> | <answer>", ErrMalformed)
	}
	return Command{Kind: KindAdd, Question: question, Answer: answer}, nil
}
