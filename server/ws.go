package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"marketrelay/hub"
	"marketrelay/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Subscribers are anonymous; the stream carries only public data.
		return true
	},
}

// handleWS upgrades the connection, registers the subscriber, replays the
// cached snapshot of every configured symbol in order, then holds the
// connection open until the transport reports disconnect.
func (s *Server) handleWS(c *gin.Context) {
	log := s.log.WithComponent("server").WithFields(logger.Fields{"remote": c.Request.RemoteAddr})

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub := hub.NewSubscriber(conn, s.cfg.Broadcast.WriteTimeout)
	s.hub.Register(sub)
	// The hub's broadcast prune path may remove the subscriber first;
	// Unregister is idempotent either way.
	defer s.hub.Unregister(sub)

	if err := s.replay(sub); err != nil {
		log.WithError(err).Warn("cache replay failed")
		return
	}

	// Inbound frames are ignored for now (reserved for future control
	// messages); the read loop only exists to detect disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("subscriber connection error")
			} else {
				log.Debug("subscriber disconnected")
			}
			return
		}
	}
}

// replay sends every cached snapshot to a new subscriber in configured
// symbol order. Symbols without a snapshot yet are skipped.
func (s *Server) replay(sub *hub.Subscriber) error {
	for _, symbol := range s.cfg.Source.Indodax.Symbols {
		update, ok := s.cache.Get(symbol)
		if !ok {
			continue
		}
		data, err := json.Marshal(update)
		if err != nil {
			return err
		}
		if err := sub.Send(data); err != nil {
			return err
		}
	}
	return nil
}
