// Package openai implements speech over the OpenAI-compatible audio API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"kb-assistant-be/pkg/speech"
	"kb-assistant-be/pkg/utils"
)

type Config struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	SynthesizeModel string
	Voice           string
	// MaxChars bounds synthesized input. Zero or negative means 1000.
	MaxChars int
}

// Client implements both speech interfaces.
type Client struct {
	client          *openai.Client
	transcribeModel string
	synthesizeModel openai.SpeechModel
	voice           openai.SpeechVoice
	maxChars        int
}

var (
	_ speech.SpeechToText = (*Client)(nil)
	_ speech.TextToSpeech = (*Client)(nil)
)

func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 1000
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = openai.Whisper1
	}
	if cfg.SynthesizeModel == "" {
		cfg.SynthesizeModel = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}
	return &Client{
		client:          openai.NewClientWithConfig(clientCfg),
		transcribeModel: cfg.TranscribeModel,
		synthesizeModel: openai.SpeechModel(cfg.SynthesizeModel),
		voice:           openai.SpeechVoice(cfg.Voice),
		maxChars:        cfg.MaxChars,
	}
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", speech.ErrEmptyTranscript
	}
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "" {
		format = "ogg"
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model: c.transcribeModel,
		// The API infers the codec from the file name.
		FilePath: "audio." + format,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", wrapAPIError("transcription", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", speech.ErrEmptyTranscript
	}
	return text, nil
}

func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	input := utils.TruncateRunes(strings.TrimSpace(text), c.maxChars)
	if input == "" {
		return nil, fmt.Errorf("synthesize: empty input")
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          c.synthesizeModel,
		Input:          input,
		Voice:          c.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, wrapAPIError("speech", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	return audio, nil
}

func wrapAPIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s", op, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%s API error %d: %s", op, reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)))
	}
	return fmt.Errorf("%s request failed: %w", op, err)
}
