// Package audio is the capture side of voxsh: fixed-size PCM frames produced by a
// capture source and handed to the speech layer through a bounded queue.
//
// Only two goroutines ever touch a Queue: the Source producer, which only
// pushes, and the listening consumer, which only pops.
package audio

import "time"

// Format describes the PCM layout every Source must deliver.
type Format struct {
	SampleRate int // samples per second
	Channels   int
	SampleSize int // bytes per sample
	BlockSize  int // samples per frame
}

// DefaultFormat is 16 kHz mono signed 16-bit little-endian PCM in blocks of
// 8000 samples (about half a second per frame).
var DefaultFormat = Format{
	SampleRate: 16000,
	Channels:   1,
	SampleSize: 2,
	BlockSize:  8000,
}

// FrameBytes returns the byte length of one full frame.
func (f Format) FrameBytes() int {
	return f.BlockSize * f.SampleSize * f.Channels
}

// FrameDuration returns the wall-clock length of one full frame.
func (f Format) FrameDuration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.BlockSize) * time.Second / time.Duration(f.SampleRate)
}

// Frame is one block of captured PCM.
type Frame struct {
	// Seq starts at 1 and increases by one per frame of a capture run.
	Seq        uint64
	Data       []byte
	CapturedAt time.Time
}
