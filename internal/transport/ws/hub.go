// Package ws carries envelopes between clients over websockets.
//
// The hub is the Message Channel: it fans every mutation envelope out to
// every other connection and tracks presence, nothing more. It never
// interprets payloads and never applies mutations — authority stays with
// the elected GM client.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lootstash.gg/internal/protocol"
	"lootstash.gg/internal/roster"
)

// EnvelopeSink receives every relayed envelope for audit.
type EnvelopeSink interface {
	Record(env protocol.Envelope) error
}

// PresenceSink receives presence changes for audit.
type PresenceSink interface {
	RecordPresence(userID, name string, gm, active bool)
}

type Hub struct {
	log      *log.Logger
	upgrader websocket.Upgrader
	maxQueue int

	audits   []EnvelopeSink
	presence []PresenceSink

	mu       sync.Mutex
	users    map[string]*hubUser
	nextUser int
}

type hubUser struct {
	id     string
	name   string
	gm     bool
	active bool
	out    chan []byte
}

type HubConfig struct {
	MaxQueue int
	Audits   []EnvelopeSink
	Presence []PresenceSink
	Log      *log.Logger
}

func NewHub(cfg HubConfig) *Hub {
	maxQ := cfg.MaxQueue
	if maxQ <= 0 {
		maxQ = 32
	}
	return &Hub{
		log:      cfg.Log,
		maxQueue: maxQ,
		audits:   cfg.Audits,
		presence: cfg.Presence,
		users:    make(map[string]*hubUser),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		user := h.handshake(conn)
		if user == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-user.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeMutation {
				continue
			}
			var env protocol.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			if env.ProtocolVersion != protocol.Version || !protocol.IsKnownKind(env.Kind) {
				continue
			}
			// The connection owns its identity; a forged sender id would
			// defeat self-echo filtering on the real sender.
			env.Sender = user.id
			h.relay(env, user.id)
		}

		h.leave(user)
	}
}

func (h *Hub) handshake(conn *websocket.Conn) *hubUser {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	_ = conn.SetReadDeadline(time.Time{})

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		h.closeWith(conn, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		h.closeWith(conn, "bad protocol_version")
		return nil
	}
	if hello.Name == "" {
		hello.Name = "player"
	}

	user := h.join(hello)
	if user == nil {
		h.closeWith(conn, "user already connected")
		return nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		UserID:          user.id,
		Roster:          h.rosterSnapshot(),
	}
	b, err := json.Marshal(welcome)
	if err != nil {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		h.leave(user)
		return nil
	}

	h.broadcastRoster()
	return user
}

// join registers a fresh user or reactivates a returning one.
func (h *Hub) join(hello protocol.HelloMsg) *hubUser {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := strings.TrimSpace(hello.UserID)
	if id != "" {
		if existing, ok := h.users[id]; ok {
			if existing.active {
				return nil
			}
			existing.active = true
			existing.name = hello.Name
			existing.gm = hello.GM
			existing.out = make(chan []byte, h.maxQueue)
			h.recordPresence(existing)
			return existing
		}
	} else {
		h.nextUser++
		id = fmt.Sprintf("U%04d", h.nextUser)
	}

	user := &hubUser{
		id:     id,
		name:   hello.Name,
		gm:     hello.GM,
		active: true,
		out:    make(chan []byte, h.maxQueue),
	}
	h.users[id] = user
	h.recordPresence(user)
	return user
}

func (h *Hub) leave(user *hubUser) {
	h.mu.Lock()
	user.active = false
	h.recordPresence(user)
	h.mu.Unlock()
	h.broadcastRoster()
}

// relay fans an envelope out to every other active connection. Best
// effort: a client with a full queue misses the envelope, matching the
// channel's at-most-once contract.
func (h *Hub) relay(env protocol.Envelope, senderID string) {
	for _, sink := range h.audits {
		if err := sink.Record(env); err != nil {
			h.logf("audit %s: %v", env.Kind, err)
		}
	}

	b, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, u := range h.users {
		if !u.active || u.id == senderID {
			continue
		}
		select {
		case u.out <- b:
		default:
			h.logf("drop %s for %s: queue full", env.Kind, u.id)
		}
	}
}

func (h *Hub) broadcastRoster() {
	msg := protocol.RosterMsg{
		Type:            protocol.TypeRoster,
		ProtocolVersion: protocol.Version,
		Roster:          h.rosterSnapshot(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, u := range h.users {
		if !u.active {
			continue
		}
		select {
		case u.out <- b:
		default:
		}
	}
}

// rosterSnapshot lists every known user, active or not, ordered by id so
// all clients elect over the same sequence.
func (h *Hub) rosterSnapshot() []protocol.RosterUser {
	h.mu.Lock()
	users := make([]roster.User, 0, len(h.users))
	for _, u := range h.users {
		users = append(users, roster.User{ID: u.id, Name: u.name, GM: u.gm, Active: u.active})
	}
	h.mu.Unlock()

	roster.Sort(users)
	out := make([]protocol.RosterUser, len(users))
	for i, u := range users {
		out[i] = protocol.RosterUser{ID: u.ID, Name: u.Name, GM: u.GM, Active: u.Active}
	}
	return out
}

func (h *Hub) recordPresence(u *hubUser) {
	for _, sink := range h.presence {
		sink.RecordPresence(u.id, u.name, u.gm, u.active)
	}
}

func (h *Hub) closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func (h *Hub) logf(format string, args ...any) {
	if h.log != nil {
		h.log.Printf(format, args...)
	}
}
