package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"voxsh/internal/audio"
	"voxsh/internal/logging"
)

// Signal is advisory feedback emitted while listening.
type Signal string

const (
	SignalListening  Signal = "listening"  // session started
	SignalProcessing Signal = "processing" // speech is being recognized
	SignalPaused     Signal = "paused"     // silence exceeded the grace period
	SignalWaiting    Signal = "waiting"    // no audio frame arrived in time
)

// State is the listening session state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateCompleted
	StateTimedOut
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// ListenConfig holds the session heuristics.
type ListenConfig struct {
	// Timeout bounds the whole session. Reaching it without a final
	// utterance ends the session with empty text.
	Timeout time.Duration
	// SilenceGrace is how long partial results may stay empty before a
	// paused signal is emitted. Advisory only.
	SilenceGrace time.Duration
	// FrameWait is how long the consumer waits for a frame before emitting
	// a waiting signal.
	FrameWait time.Duration
	// QueueCapacity bounds the frame queue between capture and recognition.
	QueueCapacity int
}

// DefaultListenConfig returns a 10 s timeout, a 2 s silence grace and a 1 s
// frame wait.
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		Timeout:       10 * time.Second,
		SilenceGrace:  2 * time.Second,
		FrameWait:     time.Second,
		QueueCapacity: audio.DefaultQueueCapacity,
	}
}

// listeningState is reset at the start of every session.
type listeningState struct {
	sessionStart    time.Time
	lastSpeech      time.Time
	silenceElapsed  time.Duration
	pausedSignalled bool
}

// Listener runs listening sessions: Idle -> Listening -> Completed | TimedOut.
// It never retries; looping is the caller's job.
type Listener struct {
	source         audio.Source
	newTranscriber TranscriberFactory
	cfg            ListenConfig
	onSignal       func(Signal)
	now            func() time.Time

	mu    sync.Mutex
	state State
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithSignalHandler registers a callback for feedback signals. The callback
// runs on the listening goroutine and must not block.
func WithSignalHandler(fn func(Signal)) ListenerOption {
	return func(l *Listener) { l.onSignal = fn }
}

// WithClock replaces time.Now for the timeout and silence computations.
func WithClock(now func() time.Time) ListenerOption {
	return func(l *Listener) { l.now = now }
}

// NewListener creates a listener over a capture source and a transcriber factory.
func NewListener(source audio.Source, factory TranscriberFactory, cfg ListenConfig, opts ...ListenerOption) *Listener {
	def := DefaultListenConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SilenceGrace <= 0 {
		cfg.SilenceGrace = def.SilenceGrace
	}
	if cfg.FrameWait <= 0 {
		cfg.FrameWait = def.FrameWait
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	l := &Listener{
		source:         source,
		newTranscriber: factory,
		cfg:            cfg,
		onSignal:       func(Signal) {},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the state of the current or last session.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	logging.ListenDebug("Listener state -> %s", s)
}

// Listen runs one session and returns the first non-empty final utterance.
// An empty string with a nil error means no speech was captured before the
// timeout. Capture and transcriber failures are returned as *CaptureFault;
// cancellation of ctx returns ctx.Err().
func (l *Listener) Listen(ctx context.Context) (string, error) {
	timer := logging.StartTimer(logging.CategoryListen, "Listening session")
	defer timer.Stop()

	l.setState(StateListening)
	l.onSignal(SignalListening)

	transcriber, err := l.newTranscriber(ctx)
	if err != nil {
		l.setState(StateAborted)
		logging.ListenError("Transcriber unavailable: %v", err)
		return "", &CaptureFault{Op: "open transcriber", Err: err}
	}
	defer transcriber.Close()

	queue := audio.NewQueue(l.cfg.QueueCapacity)
	captureCtx, stopCapture := context.WithCancel(ctx)
	defer stopCapture()

	g, gctx := errgroup.WithContext(captureCtx)
	g.Go(func() error {
		return l.source.Run(gctx, queue)
	})

	text, err := l.consume(ctx, NewSegmenter(transcriber), queue)

	stopCapture()
	if waitErr := g.Wait(); waitErr != nil && err == nil && text == "" {
		logging.ListenWarn("Capture ended with error: %v", waitErr)
	}

	switch {
	case err != nil:
		l.setState(StateAborted)
	case text != "":
		l.setState(StateCompleted)
	default:
		l.setState(StateTimedOut)
	}
	return text, err
}

func (l *Listener) consume(ctx context.Context, seg *Segmenter, queue *audio.Queue) (string, error) {
	start := l.now()
	st := listeningState{sessionStart: start, lastSpeech: start}
	deadline := start.Add(l.cfg.Timeout)

	for {
		now := l.now()
		if !now.Before(deadline) {
			logging.Listen("Listening timed out after %v", now.Sub(st.sessionStart))
			return "", nil
		}

		wait := l.cfg.FrameWait
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}

		frame, err := queue.Pop(ctx, wait)
		switch {
		case err == nil:
		case errors.Is(err, audio.ErrStarved):
			// Starved time counts toward the timeout only, not the silence grace.
			st.lastSpeech = st.lastSpeech.Add(l.now().Sub(now))
			if wait == l.cfg.FrameWait {
				l.onSignal(SignalWaiting)
			}
			continue
		case errors.Is(err, audio.ErrClosed):
			return l.flush(ctx, seg)
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			logging.ListenError("Capture failed: %v", err)
			return "", &CaptureFault{Op: "read frames", Err: err}
		}

		u, err := seg.Feed(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logging.ListenError("Transcriber failed on frame %d: %v", frame.Seq, err)
			return "", &CaptureFault{Op: "transcribe", Err: err}
		}

		now = l.now()
		if u.Final {
			if text := strings.TrimSpace(u.Text); text != "" {
				logging.Listen("Final utterance: %q", text)
				return text, nil
			}
			logging.ListenDebug("Empty final utterance treated as noise")
			continue
		}

		if strings.TrimSpace(u.Partial) != "" {
			st.lastSpeech = now
			st.silenceElapsed = 0
			st.pausedSignalled = false
			l.onSignal(SignalProcessing)
			continue
		}

		st.silenceElapsed = now.Sub(st.lastSpeech)
		if st.silenceElapsed > l.cfg.SilenceGrace && !st.pausedSignalled {
			st.pausedSignalled = true
			l.onSignal(SignalPaused)
		}
	}
}

// flush finalizes the last segment when the capture stream ends on its own.
func (l *Listener) flush(ctx context.Context, seg *Segmenter) (string, error) {
	u, err := seg.Flush(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &CaptureFault{Op: "flush", Err: err}
	}
	text := strings.TrimSpace(u.Text)
	logging.Listen("Capture stream ended; flushed text=%q", text)
	return text, nil
}
