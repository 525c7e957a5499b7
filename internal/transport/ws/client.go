package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lootstash.gg/internal/protocol"
	"lootstash.gg/internal/roster"
)

// Client is a hub connection implementing the broadcast channel plus a
// live roster snapshot for authority election.
type Client struct {
	conn *websocket.Conn
	log  *log.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	userID  string
	users   []roster.User
	subs    map[int]func(protocol.Envelope)
	nextSub int

	done chan struct{}
}

type DialConfig struct {
	URL    string
	Name   string
	GM     bool
	UserID string // empty for a fresh join; set to resume an identity
	Log    *log.Logger
}

func Dial(cfg DialConfig) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		UserID:          cfg.UserID,
		Name:            cfg.Name,
		GM:              cfg.GM,
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("bad WELCOME: %w", err)
	}

	c := &Client{
		conn:   conn,
		log:    cfg.Log,
		userID: welcome.UserID,
		users:  fromWire(welcome.Roster),
		subs:   make(map[int]func(protocol.Envelope)),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) UserID() string { return c.userID }

// Users returns the latest roster snapshot. Election over it must happen
// per decision, never cached by callers.
func (c *Client) Users() []roster.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]roster.User, len(c.users))
	copy(out, c.users)
	return out
}

// Publish broadcasts one envelope. Fire-and-forget.
func (c *Client) Publish(env protocol.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) Subscribe(fn func(protocol.Envelope)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Done closes when the connection drops.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeRoster:
			var m protocol.RosterMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				continue
			}
			c.mu.Lock()
			c.users = fromWire(m.Roster)
			c.mu.Unlock()

		case protocol.TypeMutation:
			var env protocol.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			for _, fn := range c.handlers() {
				fn(env)
			}
		}
	}
}

func (c *Client) handlers() []func(protocol.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(protocol.Envelope), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

func fromWire(users []protocol.RosterUser) []roster.User {
	out := make([]roster.User, len(users))
	for i, u := range users {
		out[i] = roster.User{ID: u.ID, Name: u.Name, GM: u.GM, Active: u.Active}
	}
	roster.Sort(out)
	return out
}
