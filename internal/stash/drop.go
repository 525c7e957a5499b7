package stash

import (
	"encoding/json"
	"fmt"
	"log"

	"lootstash.gg/internal/items"
	"lootstash.gg/internal/scene"
)

// SceneSource is the read side of the canvas host used for drop
// placement.
type SceneSource interface {
	Placeables() []scene.Token
	GridSize() float64
	SnapToGrid(x, y float64) (float64, float64)
}

// ActorOps removes an item from its source actor when a drop originates
// from an inventory. Direct host call, not relayed: the original protocol
// has no mutation kind for it.
type ActorOps interface {
	DeleteOwnedItem(actorID, itemID string) error
}

// Catalog resolves compendium item references.
type Catalog interface {
	Item(id string) (items.ItemDoc, bool)
}

// DropData describes a drag-and-drop already transformed into canvas
// coordinates by the presentation layer. Exactly one of ActorID+Data
// (inventory source) or ItemID (catalog source) identifies the item.
type DropData struct {
	Type    string          `json:"type"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	ActorID string          `json:"actor_id,omitempty"`
	ItemID  string          `json:"item_id,omitempty"`
	Pack    string          `json:"pack,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type DropHandler struct {
	Mutator Mutator
	Scene   SceneSource
	Actors  ActorOps
	Catalog Catalog
	Log     *log.Logger
}

// HandleDropRaw parses the transfer payload and places the item. A
// payload that does not parse abandons the drop with no mutation.
func (h *DropHandler) HandleDropRaw(raw []byte) error {
	var drop DropData
	if err := json.Unmarshal(raw, &drop); err != nil {
		return fmt.Errorf("malformed drop payload: %w", err)
	}
	return h.HandleDrop(drop)
}

func (h *DropHandler) HandleDrop(drop DropData) error {
	doc, ok, err := h.resolveItem(drop)
	if err != nil {
		return err
	}
	if !ok {
		// Unknown catalog reference: abandon quietly, like an unknown
		// compendium entry.
		h.logf("drop: item %q not found in catalog", drop.ItemID)
		return nil
	}

	// An inventory-sourced item leaves its source actor before it lands
	// anywhere else.
	if drop.ActorID != "" && doc.ID != "" {
		if err := h.Actors.DeleteOwnedItem(drop.ActorID, doc.ID); err != nil {
			return fmt.Errorf("remove item from source actor %s: %w", drop.ActorID, err)
		}
	}

	if target, ok := h.hitTest(drop.X, drop.Y); ok {
		// Direct inventory transfer; no new placed object.
		if err := h.Mutator.CreateOwnedItems(target.ActorID, []items.ItemDoc{doc}); err != nil {
			return fmt.Errorf("transfer drop to actor %s: %w", target.ActorID, err)
		}
		return nil
	}

	// Empty canvas: spawn a loose pickup object. Offsetting by half a
	// cell before snapping makes the drop point the object's center.
	half := h.Scene.GridSize() / 2
	x, y := h.Scene.SnapToGrid(drop.X-half, drop.Y-half)

	loose := doc.Clone()
	loose.ID = ""
	tok := scene.Token{
		Name:        doc.Name,
		Img:         doc.Img,
		X:           x,
		Y:           y,
		Disposition: 0,
		Flags: map[string]json.RawMessage(FlagsUpdate(Flags{
			Stacks: []ItemStack{{Count: 1, Item: loose}},
		})),
	}
	if err := h.Mutator.CreateToken(tok); err != nil {
		return fmt.Errorf("spawn loose object: %w", err)
	}
	return nil
}

func (h *DropHandler) resolveItem(drop DropData) (items.ItemDoc, bool, error) {
	if drop.ActorID != "" {
		var doc items.ItemDoc
		if err := json.Unmarshal(drop.Data, &doc); err != nil {
			return items.ItemDoc{}, false, fmt.Errorf("malformed drop item data: %w", err)
		}
		return doc, true, nil
	}
	if h.Catalog == nil {
		return items.ItemDoc{}, false, nil
	}
	doc, ok := h.Catalog.Item(drop.ItemID)
	return doc, ok, nil
}

// hitTest returns the first actor-bearing token whose bounding box
// contains the point, in scene iteration order. No further tie-break.
func (h *DropHandler) hitTest(x, y float64) (scene.Token, bool) {
	for _, tok := range h.Scene.Placeables() {
		if tok.ActorID == "" {
			continue
		}
		if tok.Contains(x, y) {
			return tok, true
		}
	}
	return scene.Token{}, false
}

func (h *DropHandler) logf(format string, args ...any) {
	if h.Log != nil {
		h.Log.Printf(format, args...)
	}
}
