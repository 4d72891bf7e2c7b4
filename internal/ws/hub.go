// Package ws fans out coordinator events to websocket consumers. Consumers
// subscribe to named channels and only receive messages published on them.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"lodestone/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope every consumer receives.
type Message struct {
	Channel   string    `json:"channel"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
)

type Options struct {
	QueueSize    int
	SendBuffer   int
	PingInterval time.Duration
	HistorySize  int
	// HistoryPrefixes selects the channels whose recent messages are
	// replayed to new subscribers.
	HistoryPrefixes []string
}

type envelope struct {
	channel string
	data    []byte
}

type subscription struct {
	client  *Client
	channel string
	on      bool
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	stop       chan struct{}
	stopOnce   sync.Once
	history    *history
	opts       Options
	consumers  atomic.Int64
	now        func() time.Time
}

func NewHub(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, opts.QueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription, 64),
		stop:       make(chan struct{}),
		history:    newHistory(opts.HistorySize, opts.HistoryPrefixes),
		opts:       opts,
		now:        time.Now,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.setConsumers()

		case client := <-h.unregister:
			h.drop(client)

		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			if !sub.on {
				delete(sub.client.channels, sub.channel)
				h.deliver(sub.client, h.ack(sub.channel, TypeUnsubscribed))
				continue
			}
			sub.client.channels[sub.channel] = true
			if !h.deliver(sub.client, h.ack(sub.channel, TypeSubscribed)) {
				continue
			}
			for _, msg := range h.history.snapshot(sub.channel) {
				if !h.deliver(sub.client, msg) {
					break
				}
			}

		case env := <-h.broadcast:
			h.history.add(env.channel, env.data)
			for client := range h.clients {
				if client.channels[env.channel] {
					h.deliver(client, env.data)
				}
			}

		case <-h.stop:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.setConsumers()
			return
		}
	}
}

func (h *Hub) ack(channel, msgType string) []byte {
	data, _ := json.Marshal(Message{Channel: channel, Type: msgType, Timestamp: h.now().UTC()})
	return data
}

// deliver never blocks; a consumer whose queue is full is dropped.
func (h *Hub) deliver(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		metrics.FanoutDroppedTotal.WithLabelValues("slow_consumer").Inc()
		log.Warn().Str("remote", c.remote).Msg("dropping slow websocket consumer")
		h.drop(c)
		return false
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.setConsumers()
	}
}

func (h *Hub) setConsumers() {
	h.consumers.Store(int64(len(h.clients)))
	metrics.FanoutConsumers.Set(float64(len(h.clients)))
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Publish queues a message for every subscriber of channel. It never
// blocks: when the hub queue is full the message is dropped.
func (h *Hub) Publish(channel, msgType string, payload any) {
	data, err := json.Marshal(Message{
		Channel:   channel,
		Type:      msgType,
		Payload:   payload,
		Timestamp: h.now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Str("type", msgType).Msg("unencodable fan-out payload")
		return
	}

	select {
	case h.broadcast <- envelope{channel: channel, data: data}:
	default:
		metrics.FanoutDroppedTotal.WithLabelValues("queue_full").Inc()
	}
}

func (h *Hub) Consumers() int {
	return int(h.consumers.Load())
}

// ClearHistory forgets the retained messages of channel.
func (h *Hub) ClearHistory(channel string) {
	h.history.clear(channel)
}

// History returns the retained messages of channel, oldest first.
func (h *Hub) History(channel string) [][]byte {
	return h.history.snapshot(channel)
}

// ServeWs upgrades the request. Channels named in ?channel= are subscribed
// immediately; more can be added with subscribe actions.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, h.opts.SendBuffer),
		channels: make(map[string]bool),
		remote:   r.RemoteAddr,
	}

	select {
	case h.register <- client:
	case <-h.stop:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	for _, ch := range r.URL.Query()["channel"] {
		if ch != "" {
			client.request(ch, true)
		}
	}
}
