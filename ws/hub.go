package ws

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abeme/go_chat_api/service"
)

const presenceChannelPrefix = "presence:"

// Hub is the presence registry: it maps user IDs to their live
// authenticated connections and signals online/offline transitions
// exactly once per edge. All map mutation happens on the run goroutine,
// so handle counts move by increment/decrement through its channels,
// never by snapshot-then-write from concurrent callers.
//
// When a Redis client is configured, presence broadcasts travel through
// pub/sub so every instance delivers them to its local connections; with
// a nil client they loop back through the local broadcast channel.
type Hub struct {
	rdb     *redis.Client
	userSvc service.UserService

	clients map[string]map[*Client]bool // userID -> set of connections

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	lookups     chan *presenceLookup
	transitions chan presenceTransition
}

// Message is one delivery unit. If TargetUser is set it goes to that
// user's connections only; otherwise it fans out to every connection
// except ExcludeUser's.
type Message struct {
	TargetUser  string
	ExcludeUser string
	Payload     []byte
}

type presenceLookup struct {
	userID string
	reply  chan bool
}

// presenceTransition is one online/offline edge for one user. The
// registry enqueues these in the order the edges happen, and a single
// writer goroutine applies them in that order, so the persisted flag
// and the broadcast events can never swap under a quick
// connect/disconnect.
type presenceTransition struct {
	userID   string
	username string
	online   bool
	at       time.Time
}

func NewHub(rdb *redis.Client, userSvc service.UserService) *Hub {
	h := &Hub{
		rdb:         rdb,
		userSvc:     userSvc,
		clients:     make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		lookups:     make(chan *presenceLookup),
		transitions: make(chan presenceTransition, 256),
	}
	go h.run()
	go h.presenceWriter()
	return h
}

func (h *Hub) run() {
	if h.rdb != nil {
		// presence events published by any instance (this one included)
		// come back through pub/sub and reuse the local delivery path
		pubsub := h.rdb.PSubscribe(context.Background(), presenceChannelPrefix+"*")
		ch := pubsub.Channel()
		go func() {
			for msg := range ch {
				origin := strings.TrimPrefix(msg.Channel, presenceChannelPrefix)
				h.broadcast <- &Message{ExcludeUser: origin, Payload: []byte(msg.Payload)}
			}
		}()
	}

	for {
		select {
		case c := <-h.register:
			if _, ok := h.clients[c.userID]; !ok {
				h.clients[c.userID] = make(map[*Client]bool)
			}
			first := len(h.clients[c.userID]) == 0
			h.clients[c.userID][c] = true
			slog.Info("client registered", "user", c.userID, "handles", len(h.clients[c.userID]))
			if first {
				h.transitions <- presenceTransition{c.userID, c.username, true, time.Now()}
			}
		case c := <-h.unregister:
			if conns, ok := h.clients[c.userID]; ok {
				if _, exists := conns[c]; exists {
					delete(conns, c)
					close(c.send)
				}
				if len(conns) == 0 {
					delete(h.clients, c.userID)
					// lastSeen is the moment the last handle went away
					h.transitions <- presenceTransition{c.userID, c.username, false, time.Now()}
				}
			}
		case m := <-h.broadcast:
			if m.TargetUser != "" {
				h.deliver(h.clients[m.TargetUser], m.Payload)
				continue
			}
			for userID, conns := range h.clients {
				if userID == m.ExcludeUser {
					continue
				}
				h.deliver(conns, m.Payload)
			}
		case q := <-h.lookups:
			q.reply <- len(h.clients[q.userID]) > 0
		}
	}
}

// deliver enqueues a payload on each connection's send buffer. A full
// buffer means a stuck peer: the payload is dropped and the connection
// is killed so its read pump exits and deregisters it through the
// normal path. Only deregistration may close c.send; closing it here
// would race the connection's own handlers.
func (h *Hub) deliver(conns map[*Client]bool, payload []byte) {
	for c := range conns {
		select {
		case c.send <- payload:
		default:
			if c.conn != nil {
				_ = c.conn.Close()
			}
		}
	}
}

// presenceWriter applies transitions one at a time, in the order the
// registry observed them. Running them off the registry goroutine keeps
// a slow store or peer from blocking register/deregister/lookup.
func (h *Hub) presenceWriter() {
	for tr := range h.transitions {
		h.applyPresence(tr)
	}
}

// applyPresence persists the online flag and last-seen, then broadcasts
// the transition.
func (h *Hub) applyPresence(tr presenceTransition) {
	userID, username, online, at := tr.userID, tr.username, tr.online, tr.at
	if h.userSvc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.userSvc.SetPresence(ctx, userID, online, at); err != nil {
			slog.Error("persist presence", "user", userID, "online", online, "err", err)
		}
	}

	evt := PresenceEvent{UserID: userID, Username: username, IsOnline: online}
	if online {
		evt.Type = EventUserOnline
	} else {
		evt.Type = EventUserOffline
		evt.LastSeen = &at
	}
	payload := marshalEvent(evt)

	if h.rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.rdb.Publish(ctx, presenceChannelPrefix+userID, payload).Err(); err != nil {
			slog.Error("publish presence", "user", userID, "err", err)
		}
		return
	}
	h.broadcast <- &Message{ExcludeUser: userID, Payload: payload}
}

func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// SendToUser enqueues a payload for all of a user's live connections.
// It is a no-op if the user is not reachable; nothing is queued.
func (h *Hub) SendToUser(userID string, payload []byte) {
	h.broadcast <- &Message{TargetUser: userID, Payload: payload}
}

// Reachable reports whether the user has at least one live connection.
// The check goes through the registry goroutine and never touches I/O.
func (h *Hub) Reachable(userID string) bool {
	q := &presenceLookup{userID: userID, reply: make(chan bool, 1)}
	h.lookups <- q
	return <-q.reply
}
