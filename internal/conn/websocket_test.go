// ABOUTME: Tests for endpoint derivation and the gorilla websocket transport
// ABOUTME: Runs the manager against an httptest server that drops its first client

package conn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		want    string
		wantErr bool
	}{
		{"plain page", "http://example.org", "ws://example.org/api/socket", false},
		{"secure page", "https://example.org:8443/a/1", "wss://example.org:8443/api/socket", false},
		{"already ws", "ws://localhost:8000", "ws://localhost:8000/api/socket", false},
		{"query dropped", "https://example.org/?x=1#top", "wss://example.org/api/socket", false},
		{"ftp", "ftp://example.org", "", true},
		{"no host", "https:///path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Endpoint(tt.origin, "/api/socket")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type serverFrame struct {
	messageType int
	data        []byte
}

func TestWSDialer_ReconnectsAfterServerDrop(t *testing.T) {
	var conns atomic.Int32
	received := make(chan serverFrame, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		n := conns.Add(1)
		if err := ws.WriteMessage(websocket.TextMessage, []byte(`02{"id":1}`)); err != nil {
			return
		}
		if n > 1 {
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}

		mt, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		received <- serverFrame{messageType: mt, data: data}
	}))
	t.Cleanup(srv.Close)

	url, err := Endpoint(srv.URL, "/socket")
	require.NoError(t, err)

	m := NewManager(Config{
		URL:               url,
		Dialer:            &WSDialer{HandshakeTimeout: time.Second, WriteTimeout: time.Second, Token: "tok"},
		ReconnectInterval: 20 * time.Millisecond,
	})

	frames := make(chan string, 4)
	var closes atomic.Int32
	m.Observe(Handlers{
		OnMessage: func(frame []byte) { frames <- string(frame) },
		OnClose:   func(error) { closes.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	m.Connect()
	select {
	case f := <-frames:
		assert.Equal(t, `02{"id":1}`, f)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from server")
	}

	require.NoError(t, m.Send([]byte(`30{"board":"a","thread":0}`)))
	select {
	case f := <-received:
		assert.Equal(t, websocket.BinaryMessage, f.messageType)
		assert.Equal(t, `30{"board":"a","thread":0}`, string(f.data))
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive frame")
	}

	// The server hung up after one frame; the manager redials on its own
	select {
	case f := <-frames:
		assert.Equal(t, `02{"id":1}`, f)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not reconnect")
	}
	assert.Equal(t, int32(2), conns.Load())
	assert.GreaterOrEqual(t, closes.Load(), int32(1))
}

func TestWSDialer_RejectedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	url, err := Endpoint(srv.URL, "/socket")
	require.NoError(t, err)

	_, err = (&WSDialer{}).Dial(context.Background(), url)
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dial", te.Op)
	assert.Contains(t, err.Error(), "status 401")
}
