package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxsh/internal/logging"
)

// VoskTranscriber streams PCM to a vosk-server websocket endpoint.
// Every binary frame sent is answered with one JSON record, either
// {"partial": "..."} or {"text": "..."}.
type VoskTranscriber struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	eofSent bool
}

// DialVosk connects to a vosk-server and sends the stream configuration.
func DialVosk(ctx context.Context, url string, sampleRate int) (*VoskTranscriber, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial transcriber %s: %w", url, err)
	}

	cfg := map[string]any{"config": map[string]any{"sample_rate": sampleRate}}
	if err := conn.WriteJSON(cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("configure transcriber: %w", err)
	}

	logging.Speech("Connected to transcriber at %s (sample_rate=%d)", url, sampleRate)
	return &VoskTranscriber{conn: conn}, nil
}

// VoskFactory returns a TranscriberFactory that dials url for each session.
func VoskFactory(url string, sampleRate int) TranscriberFactory {
	return func(ctx context.Context) (Transcriber, error) {
		return DialVosk(ctx, url, sampleRate)
	}
}

// Accept implements Transcriber.
func (v *VoskTranscriber) Accept(ctx context.Context, pcm []byte) (Utterance, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return Utterance{}, fmt.Errorf("send audio: %w", err)
	}
	return v.readRecord(ctx)
}

// Reset implements Transcriber. vosk-server starts a new utterance on its own
// after emitting a final result.
func (v *VoskTranscriber) Reset(ctx context.Context) error {
	return nil
}

// Flush implements Transcriber by sending the end-of-stream marker.
func (v *VoskTranscriber) Flush(ctx context.Context) (Utterance, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.eofSent {
		return Utterance{Final: true}, nil
	}
	v.eofSent = true
	if err := v.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return Utterance{}, fmt.Errorf("send eof: %w", err)
	}
	return v.readRecord(ctx)
}

// Close ends the stream and closes the connection.
func (v *VoskTranscriber) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.eofSent {
		v.eofSent = true
		_ = v.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`))
	}
	_ = v.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return v.conn.Close()
}

// readRecord reads one reply, unblocking early if ctx is canceled.
func (v *VoskTranscriber) readRecord(ctx context.Context) (Utterance, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = v.conn.SetReadDeadline(dl)
	} else {
		_ = v.conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = v.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := v.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return Utterance{}, ctx.Err()
		}
		return Utterance{}, fmt.Errorf("read transcriber result: %w", err)
	}
	logging.SpeechDebug("Transcriber record: %s", data)
	return ParseRecord(data)
}
