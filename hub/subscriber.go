package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is the minimal transport surface a subscriber needs. *websocket.Conn
// satisfies it, and tests substitute fakes to simulate delivery failures.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Subscriber is one live update connection. Writes are serialized through a
// mutex so the connect-time cache replay and concurrent broadcast fan-outs
// cannot interleave frames on the same connection.
type Subscriber struct {
	id           string
	conn         Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func NewSubscriber(conn Conn, writeTimeout time.Duration) *Subscriber {
	return &Subscriber{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (s *Subscriber) ID() string {
	return s.id
}

// Send delivers one text message to the subscriber.
func (s *Subscriber) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Subscriber) close() {
	_ = s.conn.Close()
}
