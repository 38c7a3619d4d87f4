package speech

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxsh/internal/audio"
)

func TestSegmenter_RelaysResultsAndRestartsSegments(t *testing.T) {
	tr := &scriptedTranscriber{script: []Utterance{
		{Partial: "what"},
		{Text: "what time is it", Final: true},
		{Partial: "and"},
		{Text: "and the date", Final: true},
	}}
	seg := NewSegmenter(tr)
	ctx := context.Background()

	var got []Utterance
	var segments []int
	for seq := uint64(1); seq <= 4; seq++ {
		segments = append(segments, seg.Segment())
		u, err := seg.Feed(ctx, audio.Frame{Seq: seq})
		require.NoError(t, err)
		got = append(got, u)
	}

	assert.Equal(t, tr.script, got)
	assert.Equal(t, []int{1, 1, 2, 2}, segments)
	assert.Equal(t, 3, seg.Segment())
	assert.Equal(t, 2, tr.resets)
}

func TestSegmenter_RejectsOutOfOrderFrames(t *testing.T) {
	tr := &scriptedTranscriber{}
	seg := NewSegmenter(tr)
	ctx := context.Background()

	_, err := seg.Feed(ctx, audio.Frame{Seq: 1})
	require.NoError(t, err)

	_, err = seg.Feed(ctx, audio.Frame{Seq: 3})
	assert.ErrorIs(t, err, ErrFrameOrder)

	_, err = seg.Feed(ctx, audio.Frame{Seq: 1})
	assert.ErrorIs(t, err, ErrFrameOrder)

	assert.Equal(t, 1, tr.Calls(), "rejected frames never reach the transcriber")
}

func TestSegmenter_FlushFinalizes(t *testing.T) {
	tr := &scriptedTranscriber{flushed: Utterance{Text: "stop"}}
	seg := NewSegmenter(tr)

	u, err := seg.Flush(context.Background())
	require.NoError(t, err)
	assert.True(t, u.Final)
	assert.Equal(t, "stop", u.Text)
	assert.Equal(t, 2, seg.Segment())
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Utterance
	}{
		{"partial", `{"partial": "open the"}`, Utterance{Partial: "open the"}},
		{"empty partial", `{"partial": ""}`, Utterance{}},
		{"final", `{"text": "open the door"}`, Utterance{Text: "open the door", Final: true}},
		{"final with words", `{"result": [{"conf": 1.0, "word": "hi"}], "text": "hi"}`, Utterance{Text: "hi", Final: true}},
		{"empty final", `{"text": ""}`, Utterance{Final: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRecord_Malformed(t *testing.T) {
	for _, raw := range []string{`{}`, `{"alternatives": []}`, `not json`, `[1,2]`} {
		_, err := ParseRecord([]byte(raw))
		var fault *ParseFault
		assert.ErrorAs(t, err, &fault, raw)
	}
}
