package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 5 * time.Minute
)

// Conn wraps an upgraded connection and serializes outbound frames. The
// session stream writes from both its read loop and its tick pusher, and
// gorilla/websocket supports only one concurrent writer, so every write
// (deadline included) must hold the lock.
type Conn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

// NewConn wraps an upgraded connection.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// Close closes the underlying connection. Safe to call while another
// goroutine is writing; the in-flight write fails with a net error.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// WriteJSON sends an event with data.
func (c *Conn) WriteJSON(event Event, data interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ResponsePayload{Event: event, Data: data})
}

// WriteError sends a typed ErrorResponse.
func (c *Conn) WriteError(code, errMsg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes the next message. Reading has a single caller
// per connection; only writes need the lock.
func (c *Conn) ReadJSON(v interface{}) error {
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	return c.conn.ReadJSON(v)
}
