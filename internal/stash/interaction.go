package stash

import (
	"fmt"
	"log"
	"math"
	"time"

	"lootstash.gg/internal/actors"
	"lootstash.gg/internal/items"
	"lootstash.gg/internal/roster"
	"lootstash.gg/internal/scene"
)

// Mutator is the relay surface the interaction machine drives. Every
// state change goes through it so authority routing stays in one place.
type Mutator interface {
	DeleteToken(tokenID string) error
	UpdateToken(tokenID string, upd scene.TokenUpdate) error
	UpdateActor(actorID string, upd actors.ActorUpdate) error
	CreateOwnedItems(actorID string, docs []items.ItemDoc) error
	CreateToken(tok scene.Token) error
}

// ActorSource is the read side of the actor host.
type ActorSource interface {
	Actor(id string) (actors.Actor, bool)
}

// Notifier receives the user-facing signals the machine emits. All of
// them are presentation concerns; none affect state.
type Notifier interface {
	Reject(userID, reason string)
	CurrencyTaken(actorID, denom string, amount int)
	ItemsTaken(actorID, itemName string, count int, img string)
	LockCue(tokenID string)
}

// Outcome of a click on a pickup object.
type Outcome int

const (
	// OutcomePassthrough: treat as an ordinary canvas click.
	OutcomePassthrough Outcome = iota
	// OutcomeRejected: interaction refused with a user-visible notice.
	OutcomeRejected
	// OutcomeIgnored: silent no-op (hidden, out of reach, locked, or a
	// terminally open container).
	OutcomeIgnored
	// OutcomeInteracted: at least one mutation was relayed.
	OutcomeInteracted
)

const settleDelayDefault = 200 * time.Millisecond

type Interactor struct {
	Mutator  Mutator
	Actors   ActorSource
	Notify   Notifier
	GridSize float64

	// SettleDelay spaces the container image swap from the click so
	// dependent UI can settle first. Cosmetic, not a correctness need.
	SettleDelay time.Duration
	Sleep       func(time.Duration) // nil means time.Sleep

	// DeactivateDrag cancels an in-progress drag on the object after a
	// successful interaction. Optional.
	DeactivateDrag func(tokenID string)

	Log *log.Logger
}

// HandleClick runs the pickup interaction for one click. Preconditions
// are checked in a fixed order, each short-circuiting with its own
// outcome; only after all pass are mutations relayed.
//
// Not reentrant-safe: a second click on the same object while the first
// is mid-flight can interleave two open/close toggles. Accepted race.
func (in *Interactor) HandleClick(user roster.User, clicked scene.Token, controlled []scene.Token) (Outcome, error) {
	if clicked.Hidden {
		return OutcomePassthrough, nil
	}

	flags, ok := FlagsOf(clicked)
	if !ok {
		return OutcomePassthrough, nil
	}
	flags = flags.Clone()

	if user.GM {
		if len(controlled) == 0 {
			return OutcomePassthrough, nil
		}
		if len(controlled) == 1 {
			if _, isStash := FlagsOf(controlled[0]); controlled[0].ID == clicked.ID || isStash {
				// Controlling only the pickup object itself (or another
				// one) must not start a self-interaction loop.
				return OutcomePassthrough, nil
			}
		}
	}

	if len(controlled) != 1 || carriesUnclaimedLoot(controlled[0]) {
		in.notifyReject(user.ID, "You must be controlling only one token to pick up an item")
		return OutcomeRejected, nil
	}
	acting := controlled[0]

	if !visibleTo(clicked, user) {
		return OutcomeIgnored, nil
	}

	if !in.withinReach(acting, clicked) {
		return OutcomeIgnored, nil
	}

	if flags.IsLocked {
		if in.Notify != nil {
			in.Notify.LockCue(clicked.ID)
		}
		return OutcomeIgnored, nil
	}

	if flags.IsContainer && flags.IsOpen && !flags.CanClose {
		return OutcomeIgnored, nil
	}

	if flags.IsContainer {
		flags.IsOpen = !flags.IsOpen
		in.settle()
		img := flags.Image()
		upd := scene.TokenUpdate{Img: &img, Flags: FlagsUpdate(flags)}
		if err := in.Mutator.UpdateToken(clicked.ID, upd); err != nil {
			return OutcomeInteracted, fmt.Errorf("toggle container %s: %w", clicked.ID, err)
		}
	}

	// A container that just closed transfers nothing.
	if flags.IsContainer && !flags.IsOpen {
		in.deactivateDrag(clicked.ID)
		return OutcomeInteracted, nil
	}

	if err := in.transferCurrency(acting, flags); err != nil {
		return OutcomeInteracted, err
	}
	if err := in.transferStacks(acting, flags); err != nil {
		return OutcomeInteracted, err
	}

	if flags.IsContainer {
		// Contents are claimed: persist the empty shell. The container
		// stays open and is never auto-deleted.
		flags.Stacks = nil
		flags.Currency = items.ZeroCurrency()
		img := flags.Image()
		upd := scene.TokenUpdate{Img: &img, Flags: FlagsUpdate(flags)}
		if err := in.Mutator.UpdateToken(clicked.ID, upd); err != nil {
			return OutcomeInteracted, fmt.Errorf("reset container %s: %w", clicked.ID, err)
		}
	} else {
		if err := in.Mutator.DeleteToken(clicked.ID); err != nil {
			return OutcomeInteracted, fmt.Errorf("delete loose object %s: %w", clicked.ID, err)
		}
	}

	in.deactivateDrag(clicked.ID)
	return OutcomeInteracted, nil
}

// transferCurrency moves every positive denomination into the acting
// actor's totals via one actor update, notifying per denomination.
func (in *Interactor) transferCurrency(acting scene.Token, flags Flags) error {
	if acting.ActorID == "" {
		return nil
	}
	actor, ok := in.Actors.Actor(acting.ActorID)
	if !ok {
		return fmt.Errorf("actor %s not found", acting.ActorID)
	}
	totals := actor.Currency.Clone()
	if totals == nil {
		totals = items.ZeroCurrency()
	}
	found := false
	for _, denom := range items.Denominations {
		amt := flags.Currency[denom]
		if amt <= 0 {
			continue
		}
		found = true
		totals[denom] += amt
		if in.Notify != nil {
			in.Notify.CurrencyTaken(acting.ActorID, denom, amt)
		}
	}
	if !found {
		return nil
	}
	if err := in.Mutator.UpdateActor(acting.ActorID, actors.ActorUpdate{Currency: totals}); err != nil {
		return fmt.Errorf("transfer currency to %s: %w", acting.ActorID, err)
	}
	return nil
}

// transferStacks materializes every positive stack into count discrete
// owned copies, one creation mutation for the whole batch and one
// notification per stack.
func (in *Interactor) transferStacks(acting scene.Token, flags Flags) error {
	if acting.ActorID == "" {
		return nil
	}
	var toCreate []items.ItemDoc
	for _, stack := range flags.Stacks {
		if stack.Count <= 0 {
			continue
		}
		for i := 0; i < stack.Count; i++ {
			doc := stack.Item.Clone()
			doc.ID = "" // each copy becomes its own owned item
			toCreate = append(toCreate, doc)
		}
		if in.Notify != nil {
			in.Notify.ItemsTaken(acting.ActorID, stack.Item.Name, stack.Count, stack.Item.Img)
		}
	}
	if len(toCreate) == 0 {
		return nil
	}
	if err := in.Mutator.CreateOwnedItems(acting.ActorID, toCreate); err != nil {
		return fmt.Errorf("create owned items for %s: %w", acting.ActorID, err)
	}
	return nil
}

// withinReach allows up to one grid cell diagonally, measured corner to
// corner.
func (in *Interactor) withinReach(acting, clicked scene.Token) bool {
	grid := in.GridSize
	if grid <= 0 {
		grid = 100
	}
	dist := math.Hypot(acting.X-clicked.X, acting.Y-clicked.Y)
	return dist <= math.Hypot(grid, grid)
}

func (in *Interactor) settle() {
	d := in.SettleDelay
	if d == 0 {
		d = settleDelayDefault
	}
	if in.Sleep != nil {
		in.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (in *Interactor) deactivateDrag(tokenID string) {
	if in.DeactivateDrag != nil {
		in.DeactivateDrag(tokenID)
	}
}

func (in *Interactor) notifyReject(userID, reason string) {
	if in.Notify != nil {
		in.Notify.Reject(userID, reason)
	}
}

// carriesUnclaimedLoot reports whether the token still holds pickup
// stacks of its own ("hands not empty").
func carriesUnclaimedLoot(tok scene.Token) bool {
	f, ok := FlagsOf(tok)
	if !ok {
		return false
	}
	return len(f.Stacks) > 0
}

func visibleTo(tok scene.Token, user roster.User) bool {
	return !tok.Hidden || user.GM
}
