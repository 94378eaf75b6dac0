package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestConn upgrades against an in-process server whose read loop
// acknowledges every frame on the received channel.
func dialTestConn(t *testing.T, received chan<- struct{}) *Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
			received <- struct{}{}
		}
	}))
	t.Cleanup(srv.Close)

	raw, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { raw.Close() })

	return NewConn(raw)
}

// The session stream has two writers per connection: the read loop answering
// actions and the tick pusher. gorilla permits one writer at a time, so the
// wrapper must serialize them.
func TestConcurrentWritersAreSerialized(t *testing.T) {
	const writers = 4
	const perWriter = 50

	received := make(chan struct{}, writers*perWriter)
	conn := dialTestConn(t, received)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				var err error
				if n%2 == 0 {
					err = conn.WriteJSON(EventTick, map[string]int{"remaining_seconds": j})
				} else {
					err = conn.WriteError("INVALID_SESSION_STATE", "session is not accepting answers")
				}
				if err != nil {
					t.Errorf("writer %d: %v", n, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers*perWriter; i++ {
		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatalf("server received %d of %d frames", i, writers*perWriter)
		}
	}
}

func TestWriteJSONEnvelope(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		frames <- data
	}))
	defer srv.Close()

	raw, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer raw.Close()

	conn := NewConn(raw)
	if err := conn.WriteJSON(EventPong, nil); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case data := <-frames:
		if got := string(data); !strings.Contains(got, `"event":"pong"`) {
			t.Fatalf("frame = %s, want pong envelope", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
	}
}
