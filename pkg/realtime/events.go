// Package realtime speaks the upstream realtime voice protocol over a
// websocket: one session configuration message after connect, then a duplex
// stream of audio-append / response-create / item-create commands and tagged
// response events.
package realtime

import "encoding/json"

// Client event types (sent to the upstream).
const (
	TypeSessionUpdate          = "session.update"
	TypeInputAudioBufferAppend = "input_audio_buffer.append"
	TypeResponseCreate         = "response.create"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCancel         = "response.cancel"
)

// Server event types (received from the upstream).
const (
	TypeConversationItemCreated    = "conversation.item.created"
	TypeFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
	TypeFunctionCallArgumentsDone  = "response.function_call_arguments.done"
	TypeResponseAudioDelta         = "response.audio.delta"
	TypeResponseAudioDone          = "response.audio.done"
	TypeResponseDone               = "response.done"
	TypeInputAudioSpeechStarted    = "input_audio_buffer.speech_started"
	TypeError                      = "error"
	ItemTypeFunctionCall           = "function_call"
	ItemTypeFunctionCallOutput     = "function_call_output"
	ItemTypeMessage                = "message"
)

// SessionConfig is the one-shot configuration sent right after the upstream
// socket opens.
type SessionConfig struct {
	Modalities              []string            `json:"modalities,omitempty"`
	Instructions            string              `json:"instructions,omitempty"`
	Voice                   string              `json:"voice,omitempty"`
	InputAudioFormat        string              `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string              `json:"output_audio_format,omitempty"`
	InputAudioTranscription *AudioTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection      `json:"turn_detection,omitempty"`
	Temperature             float64             `json:"temperature,omitempty"`
	MaxResponseOutputTokens any                 `json:"max_response_output_tokens,omitempty"`
	Tools                   []Tool              `json:"tools,omitempty"`
}

type AudioTranscription struct {
	Model string `json:"model"`
}

// TurnDetection declares server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    bool    `json:"create_response,omitempty"`
	InterruptResponse bool    `json:"interrupt_response,omitempty"`
}

// Tool is the declarative schema of one callable function.
type Tool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ResponseConfig shapes an on-demand response.create request.
type ResponseConfig struct {
	Modalities        []string `json:"modalities,omitempty"`
	Voice             string   `json:"voice,omitempty"`
	OutputAudioFormat string   `json:"output_audio_format,omitempty"`
	Instructions      string   `json:"instructions,omitempty"`
}

// ContentPart is a piece of a conversation message item.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ConversationItem appears both in conversation.item.create commands and in
// conversation.item.created events.
type ConversationItem struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type,omitempty"`
	Role    string        `json:"role,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Name    string        `json:"name,omitempty"`
	Output  string        `json:"output,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ClientEvent is any command sent to the upstream. Only the fields relevant
// to the event type are populated.
type ClientEvent struct {
	Type     string            `json:"type"`
	Session  *SessionConfig    `json:"session,omitempty"`
	Audio    string            `json:"audio,omitempty"`
	Response *ResponseConfig   `json:"response,omitempty"`
	Item     *ConversationItem `json:"item,omitempty"`
}

// ErrorDetail carries upstream error events.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ServerEvent is a tagged event from the upstream stream.
type ServerEvent struct {
	Type         string            `json:"type"`
	Delta        string            `json:"delta,omitempty"`
	Item         *ConversationItem `json:"item,omitempty"`
	CallID       string            `json:"call_id,omitempty"`
	ItemID       string            `json:"item_id,omitempty"`
	ResponseID   string            `json:"response_id,omitempty"`
	AudioStartMS int64             `json:"audio_start_ms,omitempty"`
	Error        *ErrorDetail      `json:"error,omitempty"`
}

// AppendAudio builds an input_audio_buffer.append event from already
// base64-encoded audio.
func AppendAudio(b64 string) ClientEvent {
	return ClientEvent{Type: TypeInputAudioBufferAppend, Audio: b64}
}

// FunctionCallOutput builds the conversation item that answers a tool call.
func FunctionCallOutput(callID, output string) ClientEvent {
	return ClientEvent{
		Type: TypeConversationItemCreate,
		Item: &ConversationItem{
			ID:     "item_" + callID,
			Type:   ItemTypeFunctionCallOutput,
			CallID: callID,
			Output: output,
		},
	}
}

// AssistantMessage builds a text message item spoken in the assistant role.
func AssistantMessage(itemID, text string) ClientEvent {
	return ClientEvent{
		Type: TypeConversationItemCreate,
		Item: &ConversationItem{
			ID:      itemID,
			Type:    ItemTypeMessage,
			Role:    "assistant",
			Content: []ContentPart{{Type: "text", Text: text}},
		},
	}
}
