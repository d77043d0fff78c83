package mockfeed

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/live"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/logging"
)

// dialPair returns both ends of a fresh WebSocket connection.
func dialPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn := <-connCh:
		return serverConn, clientConn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) live.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env live.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func envelope(t *testing.T, typ live.MessageType, content any) live.Envelope {
	t.Helper()
	env, err := live.NewEnvelope(typ, content)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestHubSendsInitialThenUpdates(t *testing.T) {
	h := NewHub(logging.Discard())
	serverConn, clientConn := dialPair(t)

	h.Subscribe("/ws/queues/1/", serverConn, envelope(t, live.MsgInit, map[string]int{"id": 1}))
	h.Publish("/ws/queues/1/", envelope(t, live.MsgUpdate, map[string]int{"id": 1}))

	if env := readEnvelope(t, clientConn); env.Type != live.MsgInit {
		t.Errorf("first message = %q, want init", env.Type)
	}
	if env := readEnvelope(t, clientConn); env.Type != live.MsgUpdate {
		t.Errorf("second message = %q, want update", env.Type)
	}
}

func TestHubTopicsAreIsolated(t *testing.T) {
	h := NewHub(logging.Discard())
	queueServer, queueClient := dialPair(t)
	userServer, userClient := dialPair(t)

	h.Subscribe("/ws/queues/1/", queueServer, envelope(t, live.MsgInit, nil))
	h.Subscribe("/ws/users/1/", userServer, envelope(t, live.MsgInit, nil))
	h.Publish("/ws/queues/1/", envelope(t, live.MsgUpdate, nil))

	readEnvelope(t, queueClient)
	if env := readEnvelope(t, queueClient); env.Type != live.MsgUpdate {
		t.Errorf("queue subscriber got %q, want update", env.Type)
	}

	readEnvelope(t, userClient)
	userClient.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := userClient.ReadMessage(); err == nil {
		t.Error("user subscriber should not see queue updates")
	}
}

func TestHubCloseTopic(t *testing.T) {
	h := NewHub(logging.Discard())
	serverConn, clientConn := dialPair(t)

	h.Subscribe("/ws/queues/7/", serverConn, envelope(t, live.MsgInit, nil))
	h.CloseTopic("/ws/queues/7/", live.CloseNotFound)

	if got := h.ClientCount("/ws/queues/7/"); got != 0 {
		t.Errorf("ClientCount after close = %d, want 0", got)
	}

	readEnvelope(t, clientConn)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := clientConn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a close error, got %v", err)
	}
	if ce.Code != live.CloseNotFound {
		t.Errorf("close code = %d, want %d", ce.Code, live.CloseNotFound)
	}
}

// A subscriber whose buffer is full is dropped rather than blocking Publish.
func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub(logging.Discard())
	serverConn, _ := dialPair(t)

	// Build the client directly so no write pump drains it.
	c := &Subscription{conn: serverConn, send: make(chan frame, 1), log: h.log}
	h.mu.Lock()
	h.topics["/ws/queues/1/"] = map[*Subscription]bool{c: true}
	h.mu.Unlock()

	h.Publish("/ws/queues/1/", envelope(t, live.MsgUpdate, nil))
	if got := h.ClientCount("/ws/queues/1/"); got != 1 {
		t.Fatalf("ClientCount after first publish = %d, want 1", got)
	}

	h.Publish("/ws/queues/1/", envelope(t, live.MsgUpdate, nil))
	if got := h.ClientCount("/ws/queues/1/"); got != 0 {
		t.Errorf("slow client not dropped; ClientCount = %d", got)
	}

	<-c.send
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after the client is dropped")
	}
}

func TestHubUnsubscribeWithHandle(t *testing.T) {
	h := NewHub(logging.Discard())
	serverConn, clientConn := dialPair(t)

	sub := h.Subscribe("/ws/users/1/", serverConn, envelope(t, live.MsgInit, nil))
	assert.Equal(t, 1, h.ClientCount("/ws/users/1/"))

	h.Unsubscribe("/ws/users/1/", sub)
	h.Unsubscribe("/ws/users/1/", sub)
	assert.Equal(t, 0, h.ClientCount("/ws/users/1/"))

	h.Publish("/ws/users/1/", envelope(t, live.MsgUpdate, nil))
	readEnvelope(t, clientConn)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := clientConn.ReadMessage(); err == nil {
		t.Error("connection should end once unsubscribed")
	}
}
