package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"voxsh/internal/logging"
)

// Source is a capture device. Run pushes frames into q at the device's own
// cadence until ctx is canceled or the stream ends, and always closes q
// before returning.
type Source interface {
	Run(ctx context.Context, q *Queue) error
	Format() Format
}

// ReaderSource replays raw PCM from an io.Reader (a file, stdin, a test buffer).
type ReaderSource struct {
	r      io.Reader
	format Format

	// Realtime paces frames at the format's frame duration instead of as fast
	// as the reader allows.
	Realtime bool
}

// NewReaderSource creates a source that reads DefaultFormat PCM from r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r, format: DefaultFormat}
}

// Format returns the PCM layout of the frames.
func (s *ReaderSource) Format() Format {
	return s.format
}

// Run implements Source.
func (s *ReaderSource) Run(ctx context.Context, q *Queue) error {
	err := pump(ctx, s.r, s.format, q, s.Realtime)
	q.Close(err)
	return err
}

// pump reads fixed-size frames from r and pushes them into q. A short final
// frame is delivered as-is. io.EOF ends the stream cleanly.
func pump(ctx context.Context, r io.Reader, format Format, q *Queue, realtime bool) error {
	size := format.FrameBytes()
	var seq uint64
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			seq++
			frame := Frame{Seq: seq, Data: buf[:n], CapturedAt: time.Now()}
			if pushErr := q.Push(ctx, frame); pushErr != nil {
				return nil // consumer went away; not a capture fault
			}
			if realtime {
				select {
				case <-time.After(format.FrameDuration()):
				case <-ctx.Done():
					return nil
				}
			}
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("read audio: %w", err)
		}
	}
}

// ArecordSource captures from the default ALSA device by running arecord and
// reading raw PCM from its stdout.
type ArecordSource struct {
	Binary string // defaults to "arecord"
	Device string // optional ALSA device, passed as -D
	format Format
}

// NewArecordSource creates a microphone source in DefaultFormat.
func NewArecordSource(binary, device string) *ArecordSource {
	if binary == "" {
		binary = "arecord"
	}
	return &ArecordSource{Binary: binary, Device: device, format: DefaultFormat}
}

// Format returns the PCM layout of the frames.
func (s *ArecordSource) Format() Format {
	return s.format
}

// Args returns the arecord command line for the source's format.
func (s *ArecordSource) Args() []string {
	args := []string{
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.format.SampleRate),
		"-c", strconv.Itoa(s.format.Channels),
	}
	if s.Device != "" {
		args = append(args, "-D", s.Device)
	}
	return args
}

// Run implements Source.
func (s *ArecordSource) Run(ctx context.Context, q *Queue) (err error) {
	defer func() { q.Close(err) }()

	cmd := exec.CommandContext(ctx, s.Binary, s.Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture pipe: %w", err)
	}

	logging.ListenDebug("Starting capture: %s %s", s.Binary, strings.Join(s.Args(), " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.Binary, err)
	}

	pumpErr := pump(ctx, stdout, s.format, q, false)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil // killed on purpose
	}
	if pumpErr != nil {
		return pumpErr
	}
	if waitErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s exited: %w: %s", s.Binary, waitErr, msg)
		}
		return fmt.Errorf("%s exited: %w", s.Binary, waitErr)
	}
	return nil
}
