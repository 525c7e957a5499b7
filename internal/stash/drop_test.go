package stash

import (
	"encoding/json"
	"testing"

	"lootstash.gg/internal/actors"
	"lootstash.gg/internal/items"
	"lootstash.gg/internal/scene"
)

type fakeCatalog map[string]items.ItemDoc

func (c fakeCatalog) Item(id string) (items.ItemDoc, bool) {
	doc, ok := c[id]
	return doc, ok
}

func newDropFixture(t *testing.T) (*DropHandler, *recorder, *scene.Scene, *actors.Store) {
	t.Helper()
	rec := &recorder{}
	sc := scene.New(100)
	store := actors.NewStore()
	h := &DropHandler{
		Mutator: rec,
		Scene:   sc,
		Actors:  store,
		Catalog: fakeCatalog{
			"torch": {ID: "torch", Name: "Torch", Img: "icons/torch.svg"},
		},
	}
	return h, rec, sc, store
}

func TestHandleDrop_OntoActorTokenTransfersDirectly(t *testing.T) {
	h, rec, sc, _ := newDropFixture(t)
	if _, err := sc.CreateToken(scene.Token{ID: "P1", ActorID: "A1", X: 0, Y: 0, Width: 100, Height: 100}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	if err := h.HandleDrop(DropData{Type: "Item", ItemID: "torch", X: 50, Y: 50}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if len(rec.ops) != 1 || rec.ops[0] != "create_owned_items:A1:1" {
		t.Fatalf("expected one direct transfer, got %v", rec.ops)
	}
	if len(rec.tokens) != 0 {
		t.Fatalf("no loose object should spawn on a direct transfer")
	}
}

func TestHandleDrop_EmptyCanvasSpawnsSnappedLooseObject(t *testing.T) {
	h, rec, _, _ := newDropFixture(t)

	if err := h.HandleDrop(DropData{Type: "Item", ItemID: "torch", X: 103, Y: 97}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if len(rec.tokens) != 1 {
		t.Fatalf("expected one spawned token, got ops %v", rec.ops)
	}
	tok := rec.tokens[0]
	if tok.X != 0 || tok.Y != 0 {
		t.Fatalf("expected snap to (0,0), got (%v,%v)", tok.X, tok.Y)
	}
	if tok.Name != "Torch" || tok.Img != "icons/torch.svg" {
		t.Fatalf("token does not mirror the item: %+v", tok)
	}
	f, ok := FlagsOf(tok)
	if !ok {
		t.Fatalf("spawned token has no stash flags")
	}
	if len(f.Stacks) != 1 || f.Stacks[0].Count != 1 || f.Stacks[0].Item.Name != "Torch" {
		t.Fatalf("expected a single count-1 stack, got %+v", f.Stacks)
	}
	if f.Stacks[0].Item.ID != "" {
		t.Fatalf("placed copy must not keep the owned item id")
	}
}

func TestHandleDrop_InventorySourceLeavesSourceActor(t *testing.T) {
	h, rec, _, store := newDropFixture(t)
	if _, err := store.AddActor(actors.Actor{ID: "A2", Name: "Bram", Items: []items.ItemDoc{
		{ID: "I1", Name: "Rope", Owner: &items.OwnerRef{ActorID: "A2"}},
	}}); err != nil {
		t.Fatalf("add actor: %v", err)
	}

	data, _ := json.Marshal(items.ItemDoc{ID: "I1", Name: "Rope"})
	if err := h.HandleDrop(DropData{Type: "Item", ActorID: "A2", Data: data, X: 250, Y: 250}); err != nil {
		t.Fatalf("drop: %v", err)
	}

	src, _ := store.Actor("A2")
	if len(src.Items) != 0 {
		t.Fatalf("item must leave the source inventory, still has %+v", src.Items)
	}
	if len(rec.tokens) != 1 {
		t.Fatalf("expected a loose object spawn, got %v", rec.ops)
	}
}

func TestHandleDrop_UnknownCatalogEntryAbandons(t *testing.T) {
	h, rec, _, _ := newDropFixture(t)

	if err := h.HandleDrop(DropData{Type: "Item", ItemID: "vorpal-sword", X: 10, Y: 10}); err != nil {
		t.Fatalf("unknown entry should abandon silently: %v", err)
	}
	if len(rec.ops) != 0 {
		t.Fatalf("abandoned drop mutated: %v", rec.ops)
	}
}

func TestHandleDropRaw_MalformedPayload(t *testing.T) {
	h, rec, _, _ := newDropFixture(t)

	if err := h.HandleDropRaw([]byte(`{"x": "not a number"`)); err == nil {
		t.Fatalf("expected parse error")
	}
	if len(rec.ops) != 0 {
		t.Fatalf("malformed drop mutated: %v", rec.ops)
	}
}

func TestHandleDrop_EdgeTouchIsNotAHit(t *testing.T) {
	h, rec, sc, _ := newDropFixture(t)
	if _, err := sc.CreateToken(scene.Token{ID: "P1", ActorID: "A1", X: 0, Y: 0, Width: 100, Height: 100}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	// Exactly on the bounding box edge: not inside, so a loose object
	// spawns instead of a direct transfer.
	if err := h.HandleDrop(DropData{Type: "Item", ItemID: "torch", X: 100, Y: 50}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if len(rec.tokens) != 1 {
		t.Fatalf("expected loose spawn on edge touch, got %v", rec.ops)
	}
}
