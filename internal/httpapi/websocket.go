package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12
)

type wsEnvelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// The stream is read-only and served to local dashboards.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleHeartbeatStream sends the latest heartbeat on connect, then every
// new one until the client goes away.
func (s *Server) handleHeartbeatStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Subscribe before the initial send so nothing published in between is
	// lost.
	updates, cancel := s.heartbeats.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go s.drain(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.sendHeartbeat(conn, s.heartbeats.Latest()); err != nil {
		s.log.Infow("ws initial write failed", "error", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Infow("ws ping failed", "error", err)
				return
			}
		case hb, ok := <-updates:
			if !ok {
				return
			}
			if err := s.sendHeartbeat(conn, hb); err != nil {
				s.log.Infow("ws write failed", "error", err)
				return
			}
		}
	}
}

// drain reads and discards client frames so control frames are processed
// and a disconnect is noticed.
func (s *Server) drain(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) sendHeartbeat(conn *websocket.Conn, hb heartbeat.Heartbeat) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "heartbeat", Data: types.NewHeartbeatView(s.deviceID, hb)})
}
