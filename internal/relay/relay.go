// Package relay routes mutation requests to the elected authority.
//
// A client that is itself the authority applies a mutation directly; any
// other client wraps it in an envelope and broadcasts it, fire-and-forget.
// On receipt the authority applies envelopes from other clients exactly
// once; everyone else discards them. If no authority is connected a
// published envelope is lost — accepted, not an error.
package relay

import (
	"encoding/json"
	"fmt"
	"log"

	"lootstash.gg/internal/actors"
	"lootstash.gg/internal/channel"
	"lootstash.gg/internal/items"
	"lootstash.gg/internal/protocol"
	"lootstash.gg/internal/roster"
	"lootstash.gg/internal/scene"
)

// SceneHost is the slice of the canvas host the relay mutates.
type SceneHost interface {
	CreateToken(tok scene.Token) (scene.Token, error)
	UpdateToken(id string, upd scene.TokenUpdate) error
	DeleteToken(id string) error
}

// ActorHost is the slice of the actor/inventory host the relay mutates.
type ActorHost interface {
	UpdateActor(id string, upd actors.ActorUpdate) error
	CreateOwnedItems(actorID string, docs []items.ItemDoc) ([]items.ItemDoc, error)
}

// Journal records every envelope the authority applies. Optional.
type Journal interface {
	Record(env protocol.Envelope) error
}

type Relay struct {
	userID string
	users  func() []roster.User
	ch     channel.Channel
	scene  SceneHost
	actors ActorHost

	journal Journal
	log     *log.Logger
}

type Config struct {
	UserID  string
	Users   func() []roster.User // fresh roster snapshot, re-read per decision
	Channel channel.Channel
	Scene   SceneHost
	Actors  ActorHost
	Journal Journal
	Log     *log.Logger
}

func New(cfg Config) *Relay {
	return &Relay{
		userID:  cfg.UserID,
		users:   cfg.Users,
		ch:      cfg.Channel,
		scene:   cfg.Scene,
		actors:  cfg.Actors,
		journal: cfg.Journal,
		log:     cfg.Log,
	}
}

// isAuthority re-elects on every call. The authority can change between
// two mutations of one interaction; caching the answer is a bug.
func (r *Relay) isAuthority() bool {
	a, ok := roster.Authority(r.users())
	return ok && a.ID == r.userID
}

func (r *Relay) DeleteToken(tokenID string) error {
	return r.send(protocol.KindDeleteToken, protocol.DeleteTokenPayload{TokenID: tokenID})
}

func (r *Relay) UpdateToken(tokenID string, upd scene.TokenUpdate) error {
	updates, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("encode token update: %w", err)
	}
	return r.send(protocol.KindUpdateToken, protocol.UpdateTokenPayload{TokenID: tokenID, Updates: updates})
}

func (r *Relay) UpdateActor(actorID string, upd actors.ActorUpdate) error {
	updates, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("encode actor update: %w", err)
	}
	return r.send(protocol.KindUpdateActor, protocol.UpdateActorPayload{ActorID: actorID, Updates: updates})
}

func (r *Relay) CreateOwnedItems(actorID string, docs []items.ItemDoc) error {
	raw := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		b, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode item doc: %w", err)
		}
		raw = append(raw, b)
	}
	return r.send(protocol.KindCreateOwnedItems, protocol.CreateOwnedItemsPayload{ActorID: actorID, Items: raw})
}

func (r *Relay) CreateToken(tok scene.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return r.send(protocol.KindCreateToken, protocol.CreateTokenPayload{Token: b})
}

func (r *Relay) send(kind string, payload any) error {
	env, err := protocol.EncodeEnvelope(r.userID, kind, payload)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	if r.isAuthority() {
		return r.apply(env)
	}
	// Not the authority: one envelope out, zero local state change. No
	// acknowledgment and no retry; with no authority connected this is lost.
	return r.ch.Publish(env)
}

// HandleEnvelope is the channel receipt path. Self-echoes and receipts on
// non-authority clients are discarded silently.
func (r *Relay) HandleEnvelope(env protocol.Envelope) {
	if env.Sender == r.userID {
		return
	}
	if !r.isAuthority() {
		return
	}
	if err := r.apply(env); err != nil {
		r.logf("apply %s from %s: %v", env.Kind, env.Sender, err)
	}
}

func (r *Relay) apply(env protocol.Envelope) error {
	if r.journal != nil {
		if err := r.journal.Record(env); err != nil {
			r.logf("journal %s: %v", env.Kind, err)
		}
	}
	switch env.Kind {
	case protocol.KindDeleteToken:
		var p protocol.DeleteTokenPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		return r.scene.DeleteToken(p.TokenID)
	case protocol.KindUpdateToken:
		var p protocol.UpdateTokenPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		var upd scene.TokenUpdate
		if err := json.Unmarshal(p.Updates, &upd); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		return r.scene.UpdateToken(p.TokenID, upd)
	case protocol.KindUpdateActor:
		var p protocol.UpdateActorPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		var upd actors.ActorUpdate
		if err := json.Unmarshal(p.Updates, &upd); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		return r.actors.UpdateActor(p.ActorID, upd)
	case protocol.KindCreateOwnedItems:
		var p protocol.CreateOwnedItemsPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		docs := make([]items.ItemDoc, 0, len(p.Items))
		for _, raw := range p.Items {
			var doc items.ItemDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
			}
			docs = append(docs, doc)
		}
		_, err := r.actors.CreateOwnedItems(p.ActorID, docs)
		return err
	case protocol.KindCreateToken:
		var p protocol.CreateTokenPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		var tok scene.Token
		if err := json.Unmarshal(p.Token, &tok); err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrBadPayload, err)
		}
		_, err := r.scene.CreateToken(tok)
		return err
	default:
		return fmt.Errorf("%s: %q", protocol.ErrUnknownKind, env.Kind)
	}
}

func (r *Relay) logf(format string, args ...any) {
	if r.log != nil {
		r.log.Printf(format, args...)
	}
}
