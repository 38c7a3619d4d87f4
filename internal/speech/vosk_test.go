package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVoskServer answers every binary frame with a partial result and turns
// the third frame into a final. The eof marker yields a final "goodbye".
func fakeVoskServer(t *testing.T, gotRate chan<- int) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var cfg struct {
			Config struct {
				SampleRate int `json:"sample_rate"`
			} `json:"config"`
		}
		if err := conn.ReadJSON(&cfg); err != nil {
			return
		}
		gotRate <- cfg.Config.SampleRate

		frames := 0
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var reply map[string]string
			switch {
			case kind == websocket.TextMessage && strings.Contains(string(data), "eof"):
				reply = map[string]string{"text": "goodbye"}
			case kind == websocket.BinaryMessage:
				frames++
				if frames == 3 {
					reply = map[string]string{"text": "list files"}
				} else {
					reply = map[string]string{"partial": strings.Repeat("x", frames)}
				}
			default:
				continue
			}
			payload, _ := json.Marshal(reply)
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestVoskTranscriber_Stream(t *testing.T) {
	rates := make(chan int, 1)
	srv := fakeVoskServer(t, rates)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := VoskFactory(wsURL(srv), 16000)(ctx)
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, 16000, <-rates)

	u, err := tr.Accept(ctx, make([]byte, 16000))
	require.NoError(t, err)
	assert.Equal(t, Utterance{Partial: "x"}, u)

	u, err = tr.Accept(ctx, make([]byte, 16000))
	require.NoError(t, err)
	assert.Equal(t, Utterance{Partial: "xx"}, u)

	u, err = tr.Accept(ctx, make([]byte, 16000))
	require.NoError(t, err)
	assert.Equal(t, Utterance{Text: "list files", Final: true}, u)

	u, err = tr.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, Utterance{Text: "goodbye", Final: true}, u)

	// A second flush does not resend the marker.
	u, err = tr.Flush(ctx)
	require.NoError(t, err)
	assert.True(t, u.Final)
}

func TestDialVosk_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := DialVosk(ctx, "ws://127.0.0.1:1", 16000)
	assert.Error(t, err)
}
