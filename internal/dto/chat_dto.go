package dto

import "kb-assistant-be/pkg/governor"

// ChatRequest is a typed message. MessageId is the transport's id; redeliveries with the same id are ignored.
type ChatRequest struct {
	MessageId string `json:"message_id" validate:"max=200"`
	Text      string `json:"text" validate:"required,max=4000"`
}

// VoiceRequest carries base64 audio in JSON bodies; multipart uploads use the "audio" file field instead.
type VoiceRequest struct {
	MessageId string `json:"message_id" validate:"max=200"`
	Audio     []byte `json:"audio"`
	Format    string `json:"format" validate:"max=10"`
}

type ChatResponse struct {
	RequestId string   `json:"request_id"`
	Source    string   `json:"source"`
	Text      string   `json:"text"`
	Score     *float64 `json:"score,omitempty"`
	// Duplicate is set when the message id was already handled and nothing was resolved.
	Duplicate bool `json:"duplicate,omitempty"`
	// Command names the chat command that produced Text, if any.
	Command string `json:"command,omitempty"`
}

type VoiceResponse struct {
	ChatResponse
	Transcript string `json:"transcript"`
	// Audio is the synthesized answer (mp3), base64 in JSON. Empty when synthesis failed.
	Audio []byte `json:"audio,omitempty"`
}

type ModeRequest struct {
	Channel string `json:"channel" validate:"required,oneof=voice text"`
	Mode    string `json:"mode" validate:"required,oneof=kb llm"`
}

type SessionResponse struct {
	UserId         string  `json:"user_id"`
	VoiceMode      string  `json:"voice_mode"`
	TextMode       string  `json:"text_mode"`
	PendingContext *string `json:"pending_context,omitempty"`
}

type DocumentResponse struct {
	FileName  string `json:"file_name"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
	ExpiresIn string `json:"expires_in"`
}

type HealthResponse struct {
	Status    string           `json:"status"`
	Instance  string           `json:"instance"`
	Governors []governor.Stats `json:"governors"`
}

// ChatDelivery is what the delivery bus carries to the websocket hub and the outbound event stream.
type ChatDelivery struct {
	UserId   string       `json:"user_id"`
	Origin   string       `json:"origin"`
	Query    string       `json:"query"`
	Response ChatResponse `json:"response"`
}

// SocketMessage is the frame pushed to connected websocket clients.
type SocketMessage struct {
	Type     string       `json:"type"`
	Query    string       `json:"query,omitempty"`
	Response ChatResponse `json:"response"`
}

// InboundMessage is published by external chat transports on chat.inbound.<origin>. Voice messages carry base64
// audio; text messages carry Text.
type InboundMessage struct {
	MessageId string `json:"message_id"`
	UserId    string `json:"user_id"`
	Text      string `json:"text,omitempty"`
	Audio     []byte `json:"audio,omitempty"`
	Format    string `json:"format,omitempty"`
}
