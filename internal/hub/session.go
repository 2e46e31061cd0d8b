package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/Yehonatan-Bar/ear-fish/internal/config"
	"github.com/Yehonatan-Bar/ear-fish/pkg/log"
)

// Session binds a hub client to its gorilla connection and runs the
// read and write pumps.
type Session struct {
	Client *Client
	Conn   *websocket.Conn
	config config.WebSocketConfig
}

// NewSession wraps an upgraded connection.
func NewSession(client *Client, conn *websocket.Conn, cfg config.WebSocketConfig) *Session {
	return &Session{Client: client, Conn: conn, config: cfg}
}

// ReadPump consumes inbound frames until the peer goes away, passing
// each payload to handler. onClose runs exactly when the loop exits,
// before the socket is torn down.
func (s *Session) ReadPump(handler func([]byte), onClose func()) {
	defer func() {
		onClose()
		s.Conn.Close()
	}()

	s.Conn.SetReadLimit(s.config.MaxMessageSize)
	s.Conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
		return nil
	})

	for {
		_, message, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).
					Str(log.FieldClientID, s.Client.ID).
					Msg("websocket read error")
			}
			break
		}

		handler(message)
	}
}

// WritePump drains the client's outbound buffer onto the socket and
// keeps the connection alive with pings. It exits when the client is
// closed or a write fails.
func (s *Session) WritePump() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Client.Outbound():
			s.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if !ok {
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
