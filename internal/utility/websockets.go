package utility

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// writeWait bounds a single push to a viewer.
var writeWait = 10 * time.Second

// Client is one viewer connection. mu serializes writes to conn.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Simple Hub to hold active connections: Map[ScreenID] -> Client
var (
	Clients   = make(map[string]*Client)
	ClientsMu sync.Mutex // guards the map only, never held during a write
	Upgrader  = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Allow CORS for development
		CheckOrigin: func(r *http.Request) bool { return true },
	}
)

// RegisterClient attaches conn to a screen, replacing any previous viewer.
func RegisterClient(screenID string, conn *websocket.Conn) {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()
	if old, ok := Clients[screenID]; ok && old.conn != conn {
		old.conn.Close()
	}
	Clients[screenID] = &Client{conn: conn}
	log.Info().Str("screen_id", screenID).Msg("WebSocket Client Connected")
}

// UnregisterClient drops and closes the connection of a screen, if any.
func UnregisterClient(screenID string) {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()
	if client, ok := Clients[screenID]; ok {
		client.conn.Close()
		delete(Clients, screenID)
		log.Info().Str("screen_id", screenID).Msg("WebSocket Client Disconnected")
	}
}

// TriggerRender pushes a JSON snapshot to the viewer of a screen. A viewer
// that does not drain its socket within writeWait is dropped.
func TriggerRender(screenID string, payload any) {
	ClientsMu.Lock()
	client, ok := Clients[screenID]
	ClientsMu.Unlock()
	if !ok {
		return
	}

	client.mu.Lock()
	err := client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err == nil {
		err = client.conn.WriteJSON(payload)
	}
	client.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("screen_id", screenID).Msg("Failed to send WS message, removing client")
		ReleaseClient(screenID, client.conn)
	}
}

// ReleaseClient removes conn when its reader exits. A newer connection
// registered for the same screen is left alone.
func ReleaseClient(screenID string, conn *websocket.Conn) {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()
	if current, ok := Clients[screenID]; ok && current.conn == conn {
		delete(Clients, screenID)
		log.Info().Str("screen_id", screenID).Msg("WebSocket Client Disconnected")
	}
	conn.Close()
}
