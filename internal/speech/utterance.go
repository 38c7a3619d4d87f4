// Package speech turns captured audio into finalized utterance text.
//
// The Segmenter relays frames to an opaque streaming Transcriber and passes
// its partial/final decisions through unchanged. The Listener wraps a
// Segmenter with the session heuristics: an absolute timeout, a silence grace
// period that only produces advisory feedback, and capture starvation
// detection.
package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Utterance is one transcriber result. Partial results carry the running
// hypothesis in Partial; a final result carries the recognized text in Text.
type Utterance struct {
	Text    string
	Final   bool
	Partial string
}

// Transcriber is a streaming speech-to-text engine. Accept consumes one frame
// of PCM and reports the engine's current result for the segment.
type Transcriber interface {
	Accept(ctx context.Context, pcm []byte) (Utterance, error)
	// Reset starts a new segment after a final result.
	Reset(ctx context.Context) error
	// Flush finalizes buffered audio at the end of the stream.
	Flush(ctx context.Context) (Utterance, error)
	Close() error
}

// TranscriberFactory opens a transcriber for one listening session.
type TranscriberFactory func(ctx context.Context) (Transcriber, error)

// ParseFault reports a transcriber record that is neither a partial nor a
// final result.
type ParseFault struct {
	Raw string
	Err error
}

func (e *ParseFault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed transcriber record %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("malformed transcriber record %q", e.Raw)
}

func (e *ParseFault) Unwrap() error { return e.Err }

// CaptureFault reports a failure of the capture device or the transcriber.
// It aborts the listening session.
type CaptureFault struct {
	Op  string
	Err error
}

func (e *CaptureFault) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *CaptureFault) Unwrap() error { return e.Err }

// ErrFrameOrder is returned when frames do not arrive in capture order.
var ErrFrameOrder = errors.New("audio frame out of order")

// record is the wire shape of a transcriber result:
// {"partial": "..."} or {"text": "..."}.
type record struct {
	Text    *string `json:"text"`
	Partial *string `json:"partial"`
}

// ParseRecord validates a raw transcriber record.
func ParseRecord(data []byte) (Utterance, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Utterance{}, &ParseFault{Raw: string(data), Err: err}
	}
	switch {
	case rec.Text != nil:
		return Utterance{Text: *rec.Text, Final: true}, nil
	case rec.Partial != nil:
		return Utterance{Partial: *rec.Partial}, nil
	default:
		return Utterance{}, &ParseFault{Raw: string(data)}
	}
}
