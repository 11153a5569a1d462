// Package ws streams accepted records to websocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/PratikDhanave/group-message-collector/internal/models"
)

// AllGroups is the subscription key that receives every record.
const AllGroups = ""

const writeWait = 5 * time.Second

// Conn is the part of *websocket.Conn the hub uses.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Message struct {
	Group string
	Data  []byte
}

type Subscription struct {
	Group string
	Conn  Conn
}

// Hub fans records out to subscribers grouped by chat id.
type Hub struct {
	clients    map[string]map[Conn]bool
	broadcast  chan Message
	register   chan Subscription
	unregister chan Subscription
	done       chan struct{}
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[Conn]bool),
		broadcast:  make(chan Message, 64),
		register:   make(chan Subscription),
		unregister: make(chan Subscription),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the subscriber set until ctx ends, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for c := range conns {
					c.Close()
				}
			}
			return

		case s := <-h.register:
			if _, ok := h.clients[s.Group]; !ok {
				h.clients[s.Group] = make(map[Conn]bool)
			}
			h.clients[s.Group][s.Conn] = true
			h.log.Debug().Str("group", s.Group).Msg("subscriber joined")

		case s := <-h.unregister:
			h.drop(s.Group, s.Conn)

		case msg := <-h.broadcast:
			h.send(AllGroups, msg.Data)
			if msg.Group != AllGroups {
				h.send(msg.Group, msg.Data)
			}
		}
	}
}

func (h *Hub) send(group string, data []byte) {
	for c := range h.clients[group] {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug().Err(err).Str("group", group).Msg("dropping subscriber")
			h.drop(group, c)
		}
	}
}

func (h *Hub) drop(group string, c Conn) {
	conns, ok := h.clients[group]
	if !ok || !conns[c] {
		return
	}
	delete(conns, c)
	c.Close()
	if len(conns) == 0 {
		delete(h.clients, group)
	}
	h.log.Debug().Str("group", group).Msg("subscriber left")
}

// Write implements sink.Sink by broadcasting rec as JSON.
func (h *Hub) Write(ctx context.Context, rec models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- Message{Group: rec.GroupID, Data: data}:
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (h *Hub) Register(group string, conn Conn) {
	select {
	case h.register <- Subscription{Group: group, Conn: conn}:
	case <-h.done:
		conn.Close()
	}
}

func (h *Hub) Unregister(group string, conn Conn) {
	select {
	case h.unregister <- Subscription{Group: group, Conn: conn}:
	case <-h.done:
	}
}
