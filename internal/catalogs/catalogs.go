// Package catalogs loads the item compendium drops can reference by id.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"lootstash.gg/internal/items"
)

type ItemCatalog struct {
	Defs   map[string]items.ItemDoc
	IDs    []string // sorted, for deterministic listings
	Digest string   // sha256 over the canonical defs encoding
}

// Load reads items.json from the config directory.
func Load(configDir string) (ItemCatalog, error) {
	path := filepath.Join(configDir, "items.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return ItemCatalog{}, err
	}
	var defs []items.ItemDoc
	if err := json.Unmarshal(raw, &defs); err != nil {
		return ItemCatalog{}, fmt.Errorf("items.json: %w", err)
	}

	cat := ItemCatalog{Defs: make(map[string]items.ItemDoc, len(defs))}
	for _, def := range defs {
		if def.ID == "" {
			return ItemCatalog{}, fmt.Errorf("items.json: item %q missing id", def.Name)
		}
		if _, dup := cat.Defs[def.ID]; dup {
			return ItemCatalog{}, fmt.Errorf("items.json: duplicate item id %q", def.ID)
		}
		cat.Defs[def.ID] = def
		cat.IDs = append(cat.IDs, def.ID)
	}
	sort.Strings(cat.IDs)

	digest, err := digestDefs(cat)
	if err != nil {
		return ItemCatalog{}, err
	}
	cat.Digest = digest
	return cat, nil
}

// Item returns a copy of the definition, so callers can stamp ids and
// owner refs without touching the catalog.
func (c ItemCatalog) Item(id string) (items.ItemDoc, bool) {
	def, ok := c.Defs[id]
	if !ok {
		return items.ItemDoc{}, false
	}
	return def.Clone(), true
}

func digestDefs(c ItemCatalog) (string, error) {
	ordered := make([]items.ItemDoc, 0, len(c.IDs))
	for _, id := range c.IDs {
		ordered = append(ordered, c.Defs[id])
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return "", fmt.Errorf("digest items: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
