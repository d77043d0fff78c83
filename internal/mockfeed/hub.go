package mockfeed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/live"
)

const writeTimeout = 10 * time.Second

// frame is one queued write. A non-zero closeCode ends the connection.
type frame struct {
	data      []byte
	closeCode int
}

// Subscription is one connection following a topic. Pass it back to
// Unsubscribe when the connection ends.
type Subscription struct {
	conn *websocket.Conn
	send chan frame
	log  *logrus.Entry
}

func newSubscription(conn *websocket.Conn, log *logrus.Entry) *Subscription {
	c := &Subscription{
		conn: conn,
		send: make(chan frame, 64),
		log:  log,
	}
	go c.writePump()
	return c
}

func (c *Subscription) writePump() {
	defer c.conn.Close()
	for f := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if f.closeCode != 0 {
			msg := websocket.FormatCloseMessage(f.closeCode, "")
			if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); err != nil {
				c.log.WithError(err).Debug("close frame not sent")
			}
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
			c.log.WithError(err).Debug("feed write failed")
			return
		}
	}
}

// Hub fans envelopes out to the subscribers of each feed path.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription]bool
	log    *logrus.Entry
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscription]bool),
		log:    log,
	}
}

// Subscribe registers conn under topic and queues initial as its first
// message.
func (h *Hub) Subscribe(topic string, conn *websocket.Conn, initial live.Envelope) *Subscription {
	c := newSubscription(conn, h.log.WithField("topic", topic))

	data, err := json.Marshal(initial)
	if err != nil {
		h.log.WithError(err).Error("encode initial envelope")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscription]bool)
	}
	h.topics[topic][c] = true
	if data != nil {
		c.send <- frame{data: data}
	}
	return c
}

func (h *Hub) Unsubscribe(topic string, c *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(topic, c)
}

// Publish sends env to every subscriber of topic. Subscribers that cannot
// keep up are dropped.
func (h *Hub) Publish(topic string, env live.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.WithError(err).Error("encode envelope")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.topics[topic] {
		select {
		case c.send <- frame{data: data}:
		default:
			h.log.WithField("topic", topic).Warn("feed client too slow, disconnecting")
			h.removeLocked(topic, c)
		}
	}
}

// CloseTopic ends every subscription to topic with the given close code.
func (h *Hub) CloseTopic(topic string, code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.topics[topic] {
		select {
		case c.send <- frame{closeCode: code}:
		default:
		}
		h.removeLocked(topic, c)
	}
}

func (h *Hub) ClientCount(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

func (h *Hub) removeLocked(topic string, c *Subscription) {
	clients := h.topics[topic]
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.topics, topic)
	}
}
