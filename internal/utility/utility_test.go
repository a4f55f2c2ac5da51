package utility

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(2, time.Minute)

	assert.NoError(t, l.CheckIPRateLimit("1.1.1.1"))
	assert.NoError(t, l.CheckIPRateLimit("1.1.1.1"))
	assert.Error(t, l.CheckIPRateLimit("1.1.1.1"))
	assert.NoError(t, l.CheckIPRateLimit("2.2.2.2"), "limits are per IP")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	l := NewRateLimiter(1, 20*time.Millisecond)

	require.NoError(t, l.CheckIPRateLimit("1.1.1.1"))
	require.Error(t, l.CheckIPRateLimit("1.1.1.1"))
	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, l.CheckIPRateLimit("1.1.1.1"))
}

func TestRateLimiterForgetsIdleIPs(t *testing.T) {
	l := NewRateLimiter(1, 20*time.Millisecond)

	require.NoError(t, l.CheckIPRateLimit("1.1.1.1"))
	require.NoError(t, l.CheckIPRateLimit("2.2.2.2"))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, l.CheckIPRateLimit("3.3.3.3"))

	var keys []any
	l.attempts.Range(func(key, _ any) bool {
		keys = append(keys, key)
		return true
	})
	assert.Equal(t, []any{"3.3.3.3"}, keys)
}

func TestGetRealIP(t *testing.T) {
	e := echo.New()
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.9 "}, "10.0.0.2:1234", "198.51.100.9"},
		{"remote addr", nil, "192.0.2.44:5555", "192.0.2.44"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			c := e.NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, GetRealIP(c))
		})
	}
}

func TestGetLoggerFallsBackToGlobal(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.NotNil(t, GetLogger(c))

	custom := zerolog.Nop()
	c.Set("logger", &custom)
	assert.Same(t, &custom, GetLogger(c))
}

// dialViewer returns the server side and the client side of a websocket.
func dialViewer(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	serverConn := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConn <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return <-serverConn, client
}

func isRegistered(screenID string) bool {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()
	_, ok := Clients[screenID]
	return ok
}

func TestTriggerRenderDeliversToRegisteredClient(t *testing.T) {
	conn, client := dialViewer(t)
	RegisterClient("screen-1", conn)
	defer UnregisterClient("screen-1")

	TriggerRender("screen-1", map[string]string{"phase": "loading"})
	TriggerRender("screen-unknown", map[string]string{"phase": "ignored"})

	var got map[string]string
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "loading", got["phase"])

	ReleaseClient("screen-1", conn)
	assert.False(t, isRegistered("screen-1"))
}

func TestStalledViewerDoesNotBlockOtherScreens(t *testing.T) {
	stalled, _ := dialViewer(t) // the client side never reads
	RegisterClient("stalled-screen", stalled)
	defer UnregisterClient("stalled-screen")

	other, otherClient := dialViewer(t)
	RegisterClient("other-screen", other)
	defer UnregisterClient("other-screen")

	big := map[string]string{"blob": strings.Repeat("x", 1<<20)}
	stop := make(chan struct{})
	pusherDone := make(chan struct{})
	go func() {
		defer close(pusherDone)
		for {
			select {
			case <-stop:
				return
			default:
				TriggerRender("stalled-screen", big)
			}
		}
	}()
	// Give the pusher time to fill the socket buffers.
	time.Sleep(300 * time.Millisecond)

	rendered := make(chan struct{})
	go func() {
		TriggerRender("other-screen", map[string]string{"phase": "success"})
		close(rendered)
	}()
	select {
	case <-rendered:
	case <-time.After(2 * time.Second):
		t.Fatal("render for another screen waited on a stalled viewer")
	}

	var got map[string]string
	require.NoError(t, otherClient.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, otherClient.ReadJSON(&got))
	assert.Equal(t, "success", got["phase"])

	close(stop)
	UnregisterClient("stalled-screen")
	select {
	case <-pusherDone:
	case <-time.After(5 * time.Second):
		t.Fatal("pusher did not stop after the viewer was closed")
	}
}

func TestStalledViewerIsDroppedAfterWriteTimeout(t *testing.T) {
	prev := writeWait
	writeWait = 50 * time.Millisecond
	t.Cleanup(func() { writeWait = prev })

	stalled, _ := dialViewer(t)
	RegisterClient("slow-screen", stalled)
	defer UnregisterClient("slow-screen")

	big := map[string]string{"blob": strings.Repeat("x", 1<<20)}
	for i := 0; i < 200 && isRegistered("slow-screen"); i++ {
		TriggerRender("slow-screen", big)
	}
	assert.False(t, isRegistered("slow-screen"))
}
