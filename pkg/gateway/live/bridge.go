// Package live bridges a browser conversation socket to the upstream
// realtime voice model: audio in both directions, tool calls dispatched out
// of band.
package live

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/aigents-hub/aigents-api/pkg/gateway/respstate"
	"github.com/aigents-hub/aigents-api/pkg/gateway/tools"
	"github.com/aigents-hub/aigents-api/pkg/realtime"
)

// UpstreamConn is the live realtime connection as the bridge sees it.
// *realtime.Client satisfies it.
type UpstreamConn interface {
	Send(ev realtime.ClientEvent) error
	Events() <-chan realtime.ServerEvent
	IsOpen() bool
	Close() error
}

// UpstreamDialer opens the upstream connection for one conversation.
type UpstreamDialer func(ctx context.Context) (UpstreamConn, error)

// ClientWriter pushes synthesized audio back to the browser socket.
type ClientWriter interface {
	WriteAudio(data []byte) error
}

const assistantInstructions = `You are an AIgents Vehicle Support Assistant. Your sole purpose is to answer vehicle-related queries accurately and concisely, using only the information in your context or retrieved via the available tools. You MUST NOT hallucinate or provide information outside this scope.

When you need more data, invoke the appropriate tool:
  - search_automobile to look up vehicle listings
  - compare_automobile to compare specs of two or three models
  - news_automobiles to fetch the latest auto news

If a tool call may take time, respond with:
  "Please wait a moment while I retrieve that information."

Always keep answers focused on vehicles and guide the user to wait or use the right tool when needed.`

// SessionConfiguration is the session.update payload sent once the upstream
// socket opens.
func SessionConfiguration() *realtime.SessionConfig {
	return &realtime.SessionConfig{
		Modalities:        []string{"audio", "text"},
		Instructions:      assistantInstructions,
		Voice:             "alloy",
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		InputAudioTranscription: &realtime.AudioTranscription{
			Model: "gpt-4o-mini-transcribe",
		},
		TurnDetection: &realtime.TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
			CreateResponse:    true,
			InterruptResponse: true,
		},
		Temperature:             0.8,
		MaxResponseOutputTokens: "inf",
		Tools:                   tools.Definitions(),
	}
}

// pendingCall is the single in-flight function call. A new function_call
// item replaces it.
type pendingCall struct {
	callID string
	name   string
}

// Bridge owns one conversation's upstream side. Audio arriving before the
// upstream opens is prebuffered and flushed in order right after the session
// configuration.
type Bridge struct {
	sessionID string
	client    ClientWriter
	state     *respstate.Store
	tools     *tools.Handler
	logger    *slog.Logger

	mu       sync.Mutex
	upstream UpstreamConn
	buffer   PreBuffer

	// Touched only by the upstream read goroutine.
	pending *pendingCall
	argBuf  strings.Builder
}

func NewBridge(sessionID string, client ClientWriter, state *respstate.Store, toolHandler *tools.Handler, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		sessionID: sessionID,
		client:    client,
		state:     state,
		tools:     toolHandler,
		logger:    logger,
	}
}

// Connect dials the upstream, configures the session, flushes prebuffered
// audio, and starts the event pump. Blocks until the upstream stream ends.
func (b *Bridge) Connect(ctx context.Context, dial UpstreamDialer) error {
	up, err := dial(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("realtime connected", "session_id", b.sessionID)

	if err := up.Send(realtime.ClientEvent{
		Type:    realtime.TypeSessionUpdate,
		Session: SessionConfiguration(),
	}); err != nil {
		up.Close()
		return err
	}

	// Flush under the bridge lock so audio arriving during the flush queues
	// behind the buffered chunks instead of interleaving.
	b.mu.Lock()
	pending := b.buffer.Drain()
	for i, chunk := range pending {
		if err := up.Send(realtime.AppendAudio(chunk)); err != nil {
			b.logger.Warn("prebuffer flush send failed", "session_id", b.sessionID, "error", err)
			// Unsent chunks go back in order so nothing is lost.
			for _, rest := range pending[i:] {
				b.buffer.Append(rest)
			}
			break
		}
	}
	b.upstream = up
	b.mu.Unlock()

	b.state.SetResponding(b.sessionID, false)
	b.pump(up)
	return nil
}

// AppendAudio forwards one base64 audio chunk, or prebuffers it whenever the
// upstream connection is not open. Chunks are never dropped or reordered.
func (b *Bridge) AppendAudio(b64 string) {
	b.mu.Lock()
	up := b.upstream
	if up == nil || !up.IsOpen() {
		b.buffer.Append(b64)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	if err := up.Send(realtime.AppendAudio(b64)); err != nil {
		if errors.Is(err, realtime.ErrClosed) {
			b.buffer.Append(b64)
			return
		}
		b.logger.Warn("audio forward failed", "session_id", b.sessionID, "error", err)
	}
}

// Close tears down the upstream socket. In-flight tool work keeps running;
// its late sends fail against the closed connection and are logged.
func (b *Bridge) Close() {
	b.mu.Lock()
	up := b.upstream
	b.mu.Unlock()
	if up != nil {
		up.Close()
	}
}

func (b *Bridge) pump(up UpstreamConn) {
	for ev := range up.Events() {
		switch ev.Type {
		case realtime.TypeConversationItemCreated:
			if ev.Item != nil && ev.Item.Type == realtime.ItemTypeFunctionCall {
				b.pending = &pendingCall{callID: ev.Item.CallID, name: ev.Item.Name}
				b.argBuf.Reset()
			}

		case realtime.TypeFunctionCallArgumentsDelta:
			b.argBuf.WriteString(ev.Delta)

		case realtime.TypeFunctionCallArgumentsDone:
			if b.pending == nil {
				b.logger.Warn("arguments done without a pending call", "session_id", b.sessionID)
				continue
			}
			call := *b.pending
			args := b.argBuf.String()
			b.pending = nil
			b.argBuf.Reset()
			// Deep searches outlive the conversation socket, hence the
			// detached context.
			go b.tools.Dispatch(context.Background(), b.sessionID, call.callID, call.name, args, up)

		case realtime.TypeResponseAudioDelta:
			b.state.SetResponding(b.sessionID, false)
			data, err := base64.StdEncoding.DecodeString(ev.Delta)
			if err != nil {
				b.logger.Warn("bad audio delta", "session_id", b.sessionID, "error", err)
				continue
			}
			if err := b.client.WriteAudio(data); err != nil {
				b.logger.Warn("client audio write failed", "session_id", b.sessionID, "error", err)
			}

		case realtime.TypeResponseDone:
			b.state.SetResponding(b.sessionID, true)

		case realtime.TypeInputAudioSpeechStarted:
			b.logger.Info("speech started", "session_id", b.sessionID, "audio_start_ms", ev.AudioStartMS)

		case realtime.TypeError:
			if ev.Error != nil {
				b.logger.Error("upstream error", "session_id", b.sessionID, "code", ev.Error.Code, "message", ev.Error.Message)
			}
		}
	}
	b.logger.Info("realtime stream ended", "session_id", b.sessionID)
}
