package audio

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrStarved is returned by Pop when no frame arrived within the wait window.
	ErrStarved = errors.New("no audio frame within wait window")
	// ErrClosed is returned by Pop once the producer closed the queue and it is drained.
	ErrClosed = errors.New("frame queue closed")
)

// DefaultQueueCapacity holds about 32 seconds of audio at the default format.
const DefaultQueueCapacity = 64

// Queue is a bounded single-producer single-consumer frame queue.
// Push blocks when the queue is full; frames are never dropped.
type Queue struct {
	ch        chan Frame
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// NewQueue creates a queue holding at most capacity frames.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		ch:   make(chan Frame, capacity),
		done: make(chan struct{}),
	}
}

// Push enqueues a frame, waiting for space or ctx cancellation.
func (q *Queue) Push(ctx context.Context, f Frame) error {
	select {
	case q.ch <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the end of the stream. err, if non-nil, is reported to the
// consumer after the remaining frames are drained. Only the producer calls Close.
func (q *Queue) Close(err error) {
	q.closeOnce.Do(func() {
		q.err = err
		close(q.ch)
		close(q.done)
	})
}

// Err returns the error the producer closed the queue with.
func (q *Queue) Err() error {
	select {
	case <-q.done:
		return q.err
	default:
		return nil
	}
}

// Len reports the number of buffered frames.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Pop dequeues the next frame, waiting at most wait.
// It returns ErrStarved on timeout and ErrClosed (or the producer's error)
// once the stream has ended.
func (q *Queue) Pop(ctx context.Context, wait time.Duration) (Frame, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case f, ok := <-q.ch:
		if !ok {
			if q.err != nil {
				return Frame{}, q.err
			}
			return Frame{}, ErrClosed
		}
		return f, nil
	case <-timer.C:
		return Frame{}, ErrStarved
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}
