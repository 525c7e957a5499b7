// Package scene is the canvas/token host: placed-object geometry, grid
// snapping and the token store the authority mutates.
package scene

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
)

// Token is a placed object on the canvas. Module-specific state lives in
// the Flags namespace map; the scene itself never interprets it.
type Token struct {
	ID          string                     `json:"id,omitempty"`
	Name        string                     `json:"name,omitempty"`
	Img         string                     `json:"img,omitempty"`
	X           float64                    `json:"x"`
	Y           float64                    `json:"y"`
	Width       float64                    `json:"width,omitempty"`
	Height      float64                    `json:"height,omitempty"`
	Hidden      bool                       `json:"hidden,omitempty"`
	Disposition int                        `json:"disposition"`
	ActorID     string                     `json:"actor_id,omitempty"`
	Flags       map[string]json.RawMessage `json:"flags,omitempty"`
}

func (t Token) Clone() Token {
	out := t
	if t.Flags != nil {
		out.Flags = make(map[string]json.RawMessage, len(t.Flags))
		for k, v := range t.Flags {
			out.Flags[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// Contains reports whether the point lies strictly inside the token's
// bounding box.
func (t Token) Contains(x, y float64) bool {
	return x > t.X && x < t.X+t.Width && y > t.Y && y < t.Y+t.Height
}

// TokenUpdate is a partial token mutation. Nil fields are left untouched;
// flag namespaces present in Flags are replaced wholesale.
type TokenUpdate struct {
	Img    *string                    `json:"img,omitempty"`
	Hidden *bool                      `json:"hidden,omitempty"`
	X      *float64                   `json:"x,omitempty"`
	Y      *float64                   `json:"y,omitempty"`
	Flags  map[string]json.RawMessage `json:"flags,omitempty"`
}

// Scene is an in-memory token store. Placeables keeps creation order so
// hit-tests iterate the same way on every client.
type Scene struct {
	mu       sync.Mutex
	gridSize float64
	tokens   map[string]*Token
	order    []string
}

func New(gridSize float64) *Scene {
	if gridSize <= 0 {
		gridSize = 100
	}
	return &Scene{
		gridSize: gridSize,
		tokens:   make(map[string]*Token),
	}
}

func (s *Scene) GridSize() float64 { return s.gridSize }

// SnapToGrid snaps a point to the corner of the grid cell containing it.
func (s *Scene) SnapToGrid(x, y float64) (float64, float64) {
	return math.Floor(x/s.gridSize) * s.gridSize, math.Floor(y/s.gridSize) * s.gridSize
}

func (s *Scene) Token(id string) (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return Token{}, false
	}
	return t.Clone(), true
}

// Placeables returns copies of all tokens in creation order.
func (s *Scene) Placeables() []Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Token, 0, len(s.order))
	for _, id := range s.order {
		if t, ok := s.tokens[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (s *Scene) CreateToken(tok Token) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.ID == "" {
		tok.ID = uuid.NewString()
	}
	if _, exists := s.tokens[tok.ID]; exists {
		return Token{}, fmt.Errorf("token %s already exists", tok.ID)
	}
	if tok.Width == 0 {
		tok.Width = s.gridSize
	}
	if tok.Height == 0 {
		tok.Height = s.gridSize
	}
	stored := tok.Clone()
	s.tokens[tok.ID] = &stored
	s.order = append(s.order, tok.ID)
	return tok, nil
}

func (s *Scene) UpdateToken(id string, upd TokenUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return fmt.Errorf("token %s not found", id)
	}
	if upd.Img != nil {
		t.Img = *upd.Img
	}
	if upd.Hidden != nil {
		t.Hidden = *upd.Hidden
	}
	if upd.X != nil {
		t.X = *upd.X
	}
	if upd.Y != nil {
		t.Y = *upd.Y
	}
	if len(upd.Flags) > 0 {
		if t.Flags == nil {
			t.Flags = make(map[string]json.RawMessage, len(upd.Flags))
		}
		for k, v := range upd.Flags {
			t.Flags[k] = append(json.RawMessage(nil), v...)
		}
	}
	return nil
}

// DeleteToken removes a token. Deleting an absent token is a no-op: relays
// are at-most-once and a second delete of the same object must not fail.
func (s *Scene) DeleteToken(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return nil
	}
	delete(s.tokens, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
