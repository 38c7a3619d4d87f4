package speech

import (
	"context"
	"fmt"

	"voxsh/internal/audio"
	"voxsh/internal/logging"
)

// Segmenter feeds frames to a Transcriber in capture order and relays its
// results. Each segment yields zero or more partial utterances followed by
// exactly one final utterance, after which the next segment begins.
type Segmenter struct {
	transcriber Transcriber
	lastSeq     uint64
	segment     int
	frames      int
}

// NewSegmenter creates a segmenter positioned at the start of segment 1.
func NewSegmenter(t Transcriber) *Segmenter {
	return &Segmenter{transcriber: t, segment: 1}
}

// Segment returns the 1-based number of the segment currently being fed.
func (s *Segmenter) Segment() int {
	return s.segment
}

// Feed hands one frame to the transcriber. Frames must carry consecutive
// sequence numbers; anything else is rejected with ErrFrameOrder.
func (s *Segmenter) Feed(ctx context.Context, f audio.Frame) (Utterance, error) {
	if f.Seq != s.lastSeq+1 {
		return Utterance{}, fmt.Errorf("%w: frame %d after %d", ErrFrameOrder, f.Seq, s.lastSeq)
	}
	s.lastSeq = f.Seq

	u, err := s.transcriber.Accept(ctx, f.Data)
	if err != nil {
		return Utterance{}, err
	}
	s.frames++

	if u.Final {
		s.endSegment(ctx)
	}
	return u, nil
}

// Flush asks the transcriber for the final result of the buffered audio.
func (s *Segmenter) Flush(ctx context.Context) (Utterance, error) {
	u, err := s.transcriber.Flush(ctx)
	if err != nil {
		return Utterance{}, err
	}
	u.Final = true
	s.endSegment(ctx)
	return u, nil
}

func (s *Segmenter) endSegment(ctx context.Context) {
	logging.SpeechDebug("Segment %d finalized after %d frames", s.segment, s.frames)
	if err := s.transcriber.Reset(ctx); err != nil {
		logging.SpeechError("Transcriber reset failed: %v", err)
	}
	s.segment++
	s.frames = 0
}
