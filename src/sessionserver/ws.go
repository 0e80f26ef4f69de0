package sessionserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// wsPollInterval bounds how often the writer loop checks for new bytes
// (spec §6.3: "poll ≤100 ms").
const wsPollInterval = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Session endpoints are reached directly by their own client (CLI,
	// browser tab opened from /web); cross-origin embedding isn't part
	// of this contract, so any origin is accepted here and access
	// control is left to TokenAuthMiddleware upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serverMessage is the server→client shape for both "update" and
// "history" events (spec §6.3).
type serverMessage struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// clientMessage is the client→server shape for both "type" and
// "load_history" events (spec §6.3).
type clientMessage struct {
	Event     string `json:"event"`
	Text      string `json:"text"`
	NoNewline bool   `json:"nonewline"`
}

// handleWS serves ws://host:port/ws per spec §6.3, grounded on the
// teacher's gin terminal WS handler (former src/handler/terminal.go):
// upgrade, subscribe/replay shape, reader goroutine, writer loop.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.sess.SetTUIActive(true)
	defer s.sess.SetTUIActive(false)

	var writeMu sync.Mutex
	writeJSON := func(msg serverMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	done := make(chan struct{})
	go s.wsReadLoop(conn, writeJSON, done)

	s.wsWriteLoop(conn, writeJSON, done)
}

func (s *Server) wsReadLoop(conn *websocket.Conn, writeJSON func(serverMessage) error, done chan struct{}) {
	defer close(done)
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Event {
		case "type":
			if err := s.sess.Write(msg.Text, msg.NoNewline); err != nil {
				logrus.WithError(err).Debug("ws type event write failed")
			}
		case "load_history":
			raw := s.sess.Buffer().All()
			_ = writeJSON(serverMessage{Event: "history", Data: utf8Decode(raw)})
		}
	}
}

// wsWriteLoop delivers buffer updates in cursor order (spec §6.3:
// "Updates MUST be delivered in cursor order") by polling since(cursor)
// on a fixed interval rather than a fan-out broadcast channel, which
// keeps ordering trivially correct per connection at the cost of
// bounded latency.
func (s *Server) wsWriteLoop(conn *websocket.Conn, writeJSON func(serverMessage) error, done chan struct{}) {
	cursor := s.sess.Buffer().Cursor()
	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-s.sess.Done():
			return
		case <-ticker.C:
			chunk, newCursor := s.sess.Buffer().Since(cursor)
			if len(chunk) == 0 {
				continue
			}
			cursor = newCursor
			if err := writeJSON(serverMessage{Event: "update", Data: utf8Decode(chunk)}); err != nil {
				return
			}
		}
	}
}
