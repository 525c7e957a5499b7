package stash

import (
	"fmt"

	"lootstash.gg/internal/scene"
)

// TokenSource is the read side of the canvas host.
type TokenSource interface {
	Token(id string) (scene.Token, bool)
}

// ToggleLock flips the lock flag on a pickup object. GM-only affordance
// wired to the HUD lock icon; it is a direct flag flip, deliberately not
// gated by the interaction machine.
func ToggleLock(m Mutator, tokens TokenSource, tokenID string) (bool, error) {
	tok, ok := tokens.Token(tokenID)
	if !ok {
		return false, fmt.Errorf("token %s not found", tokenID)
	}
	flags, ok := FlagsOf(tok)
	if !ok {
		return false, fmt.Errorf("token %s is not a pickup object", tokenID)
	}
	flags = flags.Clone()
	flags.IsLocked = !flags.IsLocked
	if err := m.UpdateToken(tokenID, scene.TokenUpdate{Flags: FlagsUpdate(flags)}); err != nil {
		return false, fmt.Errorf("toggle lock on %s: %w", tokenID, err)
	}
	return flags.IsLocked, nil
}
