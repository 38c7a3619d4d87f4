package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"voxsh/internal/audio"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedTranscriber replays canned results, one per accepted frame.
// Past the end of the script it keeps answering with empty partials.
type scriptedTranscriber struct {
	mu       sync.Mutex
	script   []Utterance
	calls    int
	resets   int
	closed   bool
	flushed  Utterance
	failAt   int // 1-based call that fails, 0 = never
	clock    *fakeClock
	perFrame time.Duration
}

func (s *scriptedTranscriber) Accept(ctx context.Context, pcm []byte) (Utterance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.clock != nil {
		s.clock.Advance(s.perFrame)
	}
	if s.failAt != 0 && s.calls == s.failAt {
		return Utterance{}, errors.New("recognizer crashed")
	}
	if s.calls <= len(s.script) {
		return s.script[s.calls-1], nil
	}
	return Utterance{}, nil
}

func (s *scriptedTranscriber) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return nil
}

func (s *scriptedTranscriber) Flush(ctx context.Context) (Utterance, error) {
	return s.flushed, nil
}

func (s *scriptedTranscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedTranscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedTranscriber) factory() TranscriberFactory {
	return func(ctx context.Context) (Transcriber, error) { return s, nil }
}

// silentSource never delivers a frame.
type silentSource struct{}

func (silentSource) Format() audio.Format { return audio.DefaultFormat }

func (silentSource) Run(ctx context.Context, q *audio.Queue) error {
	<-ctx.Done()
	q.Close(nil)
	return nil
}

// frameSource delivers count frames (forever if count < 0) and then either
// ends the stream or idles until canceled.
type frameSource struct {
	count int
	idle  bool
}

func (frameSource) Format() audio.Format { return audio.DefaultFormat }

func (s frameSource) Run(ctx context.Context, q *audio.Queue) error {
	for seq := uint64(1); s.count < 0 || seq <= uint64(s.count); seq++ {
		if err := q.Push(ctx, audio.Frame{Seq: seq, Data: make([]byte, 32)}); err != nil {
			q.Close(nil)
			return nil
		}
	}
	if s.idle {
		<-ctx.Done()
	}
	q.Close(nil)
	return nil
}

// gappedSource delivers one frame, stalls for gap, delivers a second frame
// and then idles until canceled.
type gappedSource struct{ gap time.Duration }

func (gappedSource) Format() audio.Format { return audio.DefaultFormat }

func (s gappedSource) Run(ctx context.Context, q *audio.Queue) error {
	defer q.Close(nil)
	if err := q.Push(ctx, audio.Frame{Seq: 1, Data: make([]byte, 32)}); err != nil {
		return nil
	}
	select {
	case <-time.After(s.gap):
	case <-ctx.Done():
		return nil
	}
	if err := q.Push(ctx, audio.Frame{Seq: 2, Data: make([]byte, 32)}); err != nil {
		return nil
	}
	<-ctx.Done()
	return nil
}

type failingSource struct{ err error }

func (failingSource) Format() audio.Format { return audio.DefaultFormat }

func (s failingSource) Run(ctx context.Context, q *audio.Queue) error {
	q.Close(s.err)
	return s.err
}

type signalRecorder struct {
	mu      sync.Mutex
	signals []Signal
}

func (r *signalRecorder) record(s Signal) {
	r.mu.Lock()
	r.signals = append(r.signals, s)
	r.mu.Unlock()
}

func (r *signalRecorder) count(s Signal) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.signals {
		if got == s {
			n++
		}
	}
	return n
}

func fastConfig() ListenConfig {
	return ListenConfig{
		Timeout:      10 * time.Second,
		SilenceGrace: 2 * time.Second,
		FrameWait:    20 * time.Millisecond,
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestListen_NoAudioTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &scriptedTranscriber{}
	rec := &signalRecorder{}
	cfg := fastConfig()
	cfg.Timeout = 150 * time.Millisecond

	l := NewListener(silentSource{}, tr.factory(), cfg, WithSignalHandler(rec.record))
	assert.Equal(t, StateIdle, l.State())

	start := time.Now()
	text, err := l.Listen(context.Background())

	require.NoError(t, err)
	assert.Empty(t, text)
	assert.GreaterOrEqual(t, time.Since(start), cfg.Timeout)
	assert.Equal(t, 0, tr.Calls(), "no utterance may be produced without audio")
	assert.Equal(t, StateTimedOut, l.State())
	assert.Positive(t, rec.count(SignalWaiting))
	assert.True(t, tr.closed)
}

func TestListen_ReturnsFirstFinalText(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &scriptedTranscriber{script: []Utterance{
		{Partial: "list"},
		{Partial: "list files"},
		{Text: "list files", Final: true},
		{Text: "ignored", Final: true},
	}}
	rec := &signalRecorder{}

	l := NewListener(frameSource{count: -1}, tr.factory(), fastConfig(), WithSignalHandler(rec.record))
	text, err := l.Listen(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "list files", text)
	assert.Equal(t, 3, tr.Calls())
	assert.Equal(t, 2, rec.count(SignalProcessing))
	assert.Equal(t, StateCompleted, l.State())
}

func TestListen_EmptyFinalIsNoise(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &scriptedTranscriber{script: []Utterance{
		{Text: "", Final: true},
		{Partial: "hello"},
		{Text: "hello there", Final: true},
	}}

	l := NewListener(frameSource{count: -1}, tr.factory(), fastConfig())
	text, err := l.Listen(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, 2, tr.resets)
}

func TestListen_PausedSignalledOncePerSilence(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newFakeClock()
	tr := &scriptedTranscriber{
		clock:    clock,
		perFrame: 500 * time.Millisecond,
		script: []Utterance{
			{Partial: "turn"},
			{}, {}, {}, {}, // silence reaches 2.0s: not yet past grace
			{}, // 2.5s: paused
			{}, // still paused, no repeat
			{Text: "turn on the lights", Final: true},
		},
	}
	rec := &signalRecorder{}

	l := NewListener(frameSource{count: -1}, tr.factory(), fastConfig(),
		WithSignalHandler(rec.record), WithClock(clock.Now))
	text, err := l.Listen(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "turn on the lights", text)
	assert.Equal(t, 1, rec.count(SignalPaused))
	assert.Equal(t, 1, rec.count(SignalProcessing))
}

func TestListen_StarvedTimeIsNotSilence(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &scriptedTranscriber{script: []Utterance{{}, {}}}
	rec := &signalRecorder{}
	cfg := ListenConfig{
		Timeout:      700 * time.Millisecond,
		SilenceGrace: 100 * time.Millisecond,
		FrameWait:    50 * time.Millisecond,
	}

	l := NewListener(gappedSource{gap: 300 * time.Millisecond}, tr.factory(), cfg,
		WithSignalHandler(rec.record))
	text, err := l.Listen(context.Background())

	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 2, tr.Calls())
	assert.Positive(t, rec.count(SignalWaiting))
	assert.Zero(t, rec.count(SignalPaused), "a stalled capture is not a pause in speech")
	assert.Equal(t, StateTimedOut, l.State())
}

func TestListen_PartialsWithoutFinalTimeOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newFakeClock()
	script := make([]Utterance, 100)
	for i := range script {
		script[i] = Utterance{Partial: "mumble"}
	}
	tr := &scriptedTranscriber{clock: clock, perFrame: 500 * time.Millisecond, script: script}
	cfg := fastConfig()
	cfg.Timeout = 2 * time.Second

	l := NewListener(frameSource{count: -1}, tr.factory(), cfg, WithClock(clock.Now))
	text, err := l.Listen(context.Background())

	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 4, tr.Calls())
	assert.Equal(t, StateTimedOut, l.State())
}

func TestListen_StreamEndFlushesLastSegment(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &scriptedTranscriber{
		script:  []Utterance{{Partial: "open"}, {Partial: "open browser"}},
		flushed: Utterance{Text: "open browser"},
	}

	l := NewListener(frameSource{count: 2}, tr.factory(), fastConfig())
	text, err := l.Listen(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "open browser", text)
}

func TestListen_CaptureFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("no capture device")
	l := NewListener(failingSource{err: boom}, (&scriptedTranscriber{}).factory(), fastConfig())

	text, err := l.Listen(context.Background())

	assert.Empty(t, text)
	var fault *CaptureFault
	require.ErrorAs(t, err, &fault)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateAborted, l.State())
}

func TestListen_TranscriberUnavailable(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory := func(ctx context.Context) (Transcriber, error) {
		return nil, errors.New("connection refused")
	}
	l := NewListener(silentSource{}, factory, fastConfig())

	_, err := l.Listen(context.Background())

	var fault *CaptureFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "open transcriber", fault.Op)
}

func TestListen_TranscriberErrorAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &scriptedTranscriber{failAt: 2, script: []Utterance{{Partial: "a"}}}
	l := NewListener(frameSource{count: -1}, tr.factory(), fastConfig())

	_, err := l.Listen(context.Background())

	var fault *CaptureFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "transcribe", fault.Op)
}

func TestListen_CancelAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	l := NewListener(silentSource{}, (&scriptedTranscriber{}).factory(), fastConfig())
	_, err := l.Listen(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}
