// Package items holds the item document and currency types shared by the
// scene, actor and stash layers.
package items

import "encoding/json"

// Denominations in descending value order. Transfer notifications are
// emitted in this order.
var Denominations = []string{"pp", "gp", "ep", "sp", "cp"}

// Currency maps a denomination to a non-negative amount.
type Currency map[string]int

// ZeroCurrency returns a currency map with every denomination present at 0.
func ZeroCurrency() Currency {
	c := make(Currency, len(Denominations))
	for _, d := range Denominations {
		c[d] = 0
	}
	return c
}

func (c Currency) Clone() Currency {
	out := make(Currency, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// OwnerRef is the soft back-reference recorded when an item is taken into
// an actor's inventory. It is not ownership; it exists to detect a copy of
// the same logical item landing on a second actor.
type OwnerRef struct {
	ActorID string `json:"actor_id"`
}

// ItemDoc is one item definition as it travels through drops, stacks and
// owned-item creation. System-specific detail stays opaque in Data.
type ItemDoc struct {
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Img   string          `json:"img,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Owner *OwnerRef       `json:"owner,omitempty"`
}

func (d ItemDoc) Clone() ItemDoc {
	out := d
	if d.Data != nil {
		out.Data = append(json.RawMessage(nil), d.Data...)
	}
	if d.Owner != nil {
		ref := *d.Owner
		out.Owner = &ref
	}
	return out
}
