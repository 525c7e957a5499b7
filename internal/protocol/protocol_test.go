package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeBase_RoutesByType(t *testing.T) {
	base, err := DecodeBase([]byte(`{"type":"MUTATION","protocol_version":"1.0","kind":"delete_token"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if base.Type != TypeMutation || base.ProtocolVersion != Version {
		t.Fatalf("unexpected base: %+v", base)
	}
}

func TestEncodeEnvelope(t *testing.T) {
	env, err := EncodeEnvelope("U0007", KindUpdateActor, UpdateActorPayload{ActorID: "A1", Updates: json.RawMessage(`{"currency":{"gp":10}}`)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if env.Type != TypeMutation || env.Sender != "U0007" || env.Kind != KindUpdateActor {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	var p UpdateActorPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.ActorID != "A1" {
		t.Fatalf("payload lost actor id: %+v", p)
	}
}

func TestIsKnownKind(t *testing.T) {
	for _, kind := range []string{KindDeleteToken, KindUpdateToken, KindUpdateActor, KindCreateOwnedItems, KindCreateToken} {
		if !IsKnownKind(kind) {
			t.Fatalf("kind %q should be known", kind)
		}
	}
	if IsKnownKind("drop_table") {
		t.Fatalf("unexpected kind accepted")
	}
}

func TestIsKnownCode(t *testing.T) {
	if !IsKnownCode(ErrNoAuthority) || !IsKnownCode("") {
		t.Fatalf("expected known codes to pass")
	}
	if IsKnownCode("E_MADE_UP") {
		t.Fatalf("unknown code accepted")
	}
}
