package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Serve pumps frames between conn and s until either side goes away, then
// disconnects the session. It blocks until both pumps have exited.
func (g *Gateway) Serve(ctx context.Context, conn *websocket.Conn, s *Session) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.writePump(conn, s)
	}()

	g.readPump(ctx, conn, s)
	<-done
}

func (g *Gateway) readPump(ctx context.Context, conn *websocket.Conn, s *Session) {
	defer g.Disconnect(s)

	conn.SetReadLimit(g.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("WebSocket read error", "error", err, "connection_id", s.ID())
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
		g.Dispatch(ctx, s, data)
	}
}

func (g *Gateway) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(g.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame := <-s.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				g.log.Debug("WebSocket write failed", "error", err, "connection_id", s.ID())
				s.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(g.cfg.WriteWait))
			return
		}
	}
}
