// Package actors is the actor/inventory host: per-actor currency totals
// and owned-item collections mutated by the authority.
package actors

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lootstash.gg/internal/items"
)

type Actor struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Currency items.Currency  `json:"currency,omitempty"`
	Items    []items.ItemDoc `json:"items,omitempty"`
}

func (a Actor) Clone() Actor {
	out := a
	out.Currency = a.Currency.Clone()
	out.Items = make([]items.ItemDoc, len(a.Items))
	for i, it := range a.Items {
		out.Items[i] = it.Clone()
	}
	return out
}

// ActorUpdate sets the listed currency denominations to absolute totals.
// Callers compute the new totals; the host does not add.
type ActorUpdate struct {
	Currency items.Currency `json:"currency,omitempty"`
}

type Store struct {
	mu     sync.Mutex
	actors map[string]*Actor
}

func NewStore() *Store {
	return &Store{actors: make(map[string]*Actor)}
}

func (s *Store) AddActor(a Actor) (Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, exists := s.actors[a.ID]; exists {
		return Actor{}, fmt.Errorf("actor %s already exists", a.ID)
	}
	if a.Currency == nil {
		a.Currency = items.ZeroCurrency()
	}
	stored := a.Clone()
	s.actors[a.ID] = &stored
	return a, nil
}

func (s *Store) Actor(id string) (Actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return Actor{}, false
	}
	return a.Clone(), true
}

func (s *Store) All() []Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Actor, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, a.Clone())
	}
	return out
}

func (s *Store) UpdateActor(id string, upd ActorUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return fmt.Errorf("actor %s not found", id)
	}
	if len(upd.Currency) > 0 {
		if a.Currency == nil {
			a.Currency = items.ZeroCurrency()
		}
		for denom, total := range upd.Currency {
			a.Currency[denom] = total
		}
	}
	return nil
}

// CreateOwnedItems adds item copies to an actor's inventory. Each incoming
// doc that carries an owner back-reference for a different actor is a
// duplicate of an item that actor already claimed: the stale copy is
// deleted from the recorded owner before this actor is stamped as the new
// one. Concurrent claims resolve in authority arrival order (first writer
// wins).
func (s *Store) CreateOwnedItems(actorID string, docs []items.ItemDoc) ([]items.ItemDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[actorID]
	if !ok {
		return nil, fmt.Errorf("actor %s not found", actorID)
	}
	created := make([]items.ItemDoc, 0, len(docs))
	for _, doc := range docs {
		doc = doc.Clone()
		if doc.Owner != nil && doc.Owner.ActorID != actorID && doc.ID != "" {
			s.deleteOwnedLocked(doc.Owner.ActorID, doc.ID)
		}
		doc.Owner = &items.OwnerRef{ActorID: actorID}
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		a.Items = append(a.Items, doc.Clone())
		created = append(created, doc)
	}
	return created, nil
}

func (s *Store) DeleteOwnedItem(actorID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[actorID]; !ok {
		return fmt.Errorf("actor %s not found", actorID)
	}
	s.deleteOwnedLocked(actorID, itemID)
	return nil
}

func (s *Store) deleteOwnedLocked(actorID, itemID string) {
	a, ok := s.actors[actorID]
	if !ok {
		return
	}
	for i, it := range a.Items {
		if it.ID == itemID {
			a.Items = append(a.Items[:i], a.Items[i+1:]...)
			return
		}
	}
}
