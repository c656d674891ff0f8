package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sigreer/astrogod/internal/events"
)

const (
	streamBuffer = 64
	pingInterval = 30 * time.Second
	readTimeout  = 2 * pingInterval
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleEvents streams every bus event to the client as JSON until the
// client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// subscribe before the handshake completes so nothing published after
	// the client sees the upgrade is missed
	merged := make(chan events.Event, streamBuffer)
	var cancels []func()
	for _, bus := range s.buses {
		ch, cancel := bus.SubscribeChan(streamBuffer)
		cancels = append(cancels, cancel)
		go func() {
			for e := range ch {
				select {
				case merged <- e:
				default:
				}
			}
		}()
	}
	defer func() {
		for _, c := range cancels {
			c()
		}
	}()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.log.Info().Str("remote_addr", r.RemoteAddr).Msg("event stream opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.readClient(conn, cancel)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Str("remote_addr", r.RemoteAddr).Msg("event stream closed")
			return
		case e := <-merged:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug().Err(err).Msg("event write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// readClient discards client messages and cancels the stream once the
// connection fails or is closed.
func (s *Server) readClient(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("event stream read failed")
			}
			return
		}
	}
}
