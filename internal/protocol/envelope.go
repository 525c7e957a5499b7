package protocol

import "encoding/json"

// Mutation kinds carried by an envelope. The hub treats the payload as
// opaque; only the elected authority interprets it.
const (
	KindDeleteToken      = "delete_token"
	KindUpdateToken      = "update_token"
	KindUpdateActor      = "update_actor"
	KindCreateOwnedItems = "create_owned_items"
	KindCreateToken      = "create_token"
)

// Envelope is the one-way mutation request broadcast to every client.
// Transient: it exists for a single relay trip and is never persisted by
// the core (the hub journals raw envelopes for audit only).
type Envelope struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Sender          string          `json:"sender"`
	Kind            string          `json:"kind"`
	Data            json.RawMessage `json:"data"`
}

func IsKnownKind(kind string) bool {
	switch kind {
	case KindDeleteToken, KindUpdateToken, KindUpdateActor, KindCreateOwnedItems, KindCreateToken:
		return true
	}
	return false
}

// Payload shapes per kind.

type DeleteTokenPayload struct {
	TokenID string `json:"token_id"`
}

type UpdateTokenPayload struct {
	TokenID string          `json:"token_id"`
	Updates json.RawMessage `json:"updates"`
}

type UpdateActorPayload struct {
	ActorID string          `json:"actor_id"`
	Updates json.RawMessage `json:"updates"`
}

type CreateOwnedItemsPayload struct {
	ActorID string            `json:"actor_id"`
	Items   []json.RawMessage `json:"items"`
}

// CreateTokenPayload is the raw token-create request; the authority's
// scene host decides the final shape. Kept as raw JSON like the other
// payload bodies so the hub and non-authority clients never parse it.
type CreateTokenPayload struct {
	Token json.RawMessage `json:"token"`
}

func EncodeEnvelope(sender, kind string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:            TypeMutation,
		ProtocolVersion: Version,
		Sender:          sender,
		Kind:            kind,
		Data:            data,
	}, nil
}
