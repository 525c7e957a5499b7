// Package stash implements pickup objects: the flag model persisted on a
// token, the click interaction machine and drop placement.
package stash

import (
	"encoding/json"

	"lootstash.gg/internal/items"
	"lootstash.gg/internal/scene"
)

// FlagScope is the namespace key under which stash state lives in a
// token's flags.
const FlagScope = "lootstash"

// ItemStack is a countable quantity of one item definition held by a
// pickup object. Count 0 entries are inert but may remain present.
type ItemStack struct {
	ID    string        `json:"id,omitempty"` // empty until materialized
	Item  items.ItemDoc `json:"item"`
	Count int           `json:"count"`
}

// Flags is the persisted pickup state. It is a value: every mutation
// clones and replaces it wholesale, never edits it through aliases.
type Flags struct {
	Stacks      []ItemStack     `json:"item_stacks,omitempty"`
	IsContainer bool            `json:"is_container,omitempty"`
	IsOpen      bool            `json:"is_open,omitempty"`
	CanClose    bool            `json:"can_close,omitempty"`
	IsLocked    bool            `json:"is_locked,omitempty"`
	ClosedImage string          `json:"closed_image,omitempty"`
	OpenImage   string          `json:"open_image,omitempty"`
	Currency    items.Currency  `json:"currency,omitempty"`
	Owner       *items.OwnerRef `json:"owner,omitempty"`
}

func (f Flags) Clone() Flags {
	out := f
	out.Stacks = make([]ItemStack, len(f.Stacks))
	for i, s := range f.Stacks {
		out.Stacks[i] = s
		out.Stacks[i].Item = s.Item.Clone()
	}
	out.Currency = f.Currency.Clone()
	if f.Owner != nil {
		ref := *f.Owner
		out.Owner = &ref
	}
	return out
}

// State of a pickup object, derived from the container/open flags. Locked
// is an independent axis checked before any transition.
type State int

const (
	StateLoose State = iota
	StateClosed
	StateOpen
)

func (f Flags) State() State {
	switch {
	case !f.IsContainer:
		return StateLoose
	case f.IsOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// Image returns the presentation path matching the open/closed state.
func (f Flags) Image() string {
	if f.IsContainer && f.IsOpen {
		return f.OpenImage
	}
	return f.ClosedImage
}

// HasLoot reports whether anything remains available for pickup. Drives
// the HUD icon choice; the rendering itself is external.
func (f Flags) HasLoot() bool {
	for _, s := range f.Stacks {
		if s.Count > 0 {
			return true
		}
	}
	for _, amt := range f.Currency {
		if amt > 0 {
			return true
		}
	}
	return false
}

// FlagsOf decodes the stash namespace from a token. The second result is
// false when the token is not a pickup object.
func FlagsOf(tok scene.Token) (Flags, bool) {
	raw, ok := tok.Flags[FlagScope]
	if !ok {
		return Flags{}, false
	}
	var f Flags
	if err := json.Unmarshal(raw, &f); err != nil {
		return Flags{}, false
	}
	return f, true
}

// FlagsUpdate builds the namespace map for a token update carrying a full
// replacement flag set.
func FlagsUpdate(f Flags) map[string]json.RawMessage {
	b, err := json.Marshal(f)
	if err != nil {
		// Flags contains only marshalable fields; reaching this means a
		// programming error upstream.
		panic(err)
	}
	return map[string]json.RawMessage{FlagScope: b}
}
