package stash

import (
	"fmt"
	"testing"
	"time"

	"lootstash.gg/internal/actors"
	"lootstash.gg/internal/items"
	"lootstash.gg/internal/roster"
	"lootstash.gg/internal/scene"
)

// recorder captures relayed mutations in call order.
type recorder struct {
	ops     []string
	updates []scene.TokenUpdate
	actorUp []actors.ActorUpdate
	created []items.ItemDoc
	tokens  []scene.Token
}

func (r *recorder) DeleteToken(tokenID string) error {
	r.ops = append(r.ops, "delete_token:"+tokenID)
	return nil
}

func (r *recorder) UpdateToken(tokenID string, upd scene.TokenUpdate) error {
	r.ops = append(r.ops, "update_token:"+tokenID)
	r.updates = append(r.updates, upd)
	return nil
}

func (r *recorder) UpdateActor(actorID string, upd actors.ActorUpdate) error {
	r.ops = append(r.ops, "update_actor:"+actorID)
	r.actorUp = append(r.actorUp, upd)
	return nil
}

func (r *recorder) CreateOwnedItems(actorID string, docs []items.ItemDoc) error {
	r.ops = append(r.ops, fmt.Sprintf("create_owned_items:%s:%d", actorID, len(docs)))
	r.created = append(r.created, docs...)
	return nil
}

func (r *recorder) CreateToken(tok scene.Token) error {
	r.ops = append(r.ops, "create_token")
	r.tokens = append(r.tokens, tok)
	return nil
}

type notifications struct {
	rejects  []string
	currency []string
	items    []string
	locks    []string
}

func (n *notifications) Reject(userID, reason string) {
	n.rejects = append(n.rejects, userID)
}

func (n *notifications) CurrencyTaken(actorID, denom string, amount int) {
	n.currency = append(n.currency, fmt.Sprintf("%s:%s:%d", actorID, denom, amount))
}

func (n *notifications) ItemsTaken(actorID, itemName string, count int, img string) {
	n.items = append(n.items, fmt.Sprintf("%s:%s:%d", actorID, itemName, count))
}

func (n *notifications) LockCue(tokenID string) {
	n.locks = append(n.locks, tokenID)
}

type fixture struct {
	rec      *recorder
	notes    *notifications
	store    *actors.Store
	interact *Interactor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rec:   &recorder{},
		notes: &notifications{},
		store: actors.NewStore(),
	}
	if _, err := f.store.AddActor(actors.Actor{ID: "A1", Name: "Mira"}); err != nil {
		t.Fatalf("add actor: %v", err)
	}
	f.interact = &Interactor{
		Mutator:  f.rec,
		Actors:   f.store,
		Notify:   f.notes,
		GridSize: 100,
		Sleep:    func(time.Duration) {},
	}
	return f
}

func stashToken(t *testing.T, id string, x, y float64, flags Flags) scene.Token {
	t.Helper()
	return scene.Token{
		ID: id, X: x, Y: y, Width: 100, Height: 100,
		Flags: FlagsUpdate(flags),
	}
}

func actingToken(id string, x, y float64) scene.Token {
	return scene.Token{ID: id, X: x, Y: y, Width: 100, Height: 100, ActorID: "A1"}
}

var player = roster.User{ID: "U1", Name: "mira", Active: true}
var gm = roster.User{ID: "U9", Name: "gm", GM: true, Active: true}

func TestHandleClick_HiddenIsOrdinaryClick(t *testing.T) {
	f := newFixture(t)
	tok := stashToken(t, "T1", 0, 0, Flags{})
	tok.Hidden = true

	out, err := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)})
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if out != OutcomePassthrough || len(f.rec.ops) != 0 {
		t.Fatalf("expected passthrough with no mutations, got %v ops=%v", out, f.rec.ops)
	}
}

func TestHandleClick_NonStashTokenIsOrdinaryClick(t *testing.T) {
	f := newFixture(t)
	tok := scene.Token{ID: "T1", Width: 100, Height: 100}

	out, _ := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)})
	if out != OutcomePassthrough || len(f.rec.ops) != 0 {
		t.Fatalf("expected passthrough, got %v ops=%v", out, f.rec.ops)
	}
}

func TestHandleClick_GMWithoutControlledTokens(t *testing.T) {
	f := newFixture(t)
	tok := stashToken(t, "T1", 0, 0, Flags{Currency: items.Currency{"gp": 5}})

	out, _ := f.interact.HandleClick(gm, tok, nil)
	if out != OutcomePassthrough || len(f.rec.ops) != 0 {
		t.Fatalf("expected passthrough, got %v ops=%v", out, f.rec.ops)
	}
}

func TestHandleClick_GMControllingThePickupItself(t *testing.T) {
	f := newFixture(t)
	tok := stashToken(t, "T1", 0, 0, Flags{})

	out, _ := f.interact.HandleClick(gm, tok, []scene.Token{tok})
	if out != OutcomePassthrough || len(f.rec.ops) != 0 {
		t.Fatalf("expected passthrough, got %v ops=%v", out, f.rec.ops)
	}
}

func TestHandleClick_RejectsWrongControlledCount(t *testing.T) {
	f := newFixture(t)
	tok := stashToken(t, "T1", 0, 0, Flags{})

	out, _ := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0), actingToken("P2", 0, 0)})
	if out != OutcomeRejected {
		t.Fatalf("expected rejection, got %v", out)
	}
	if len(f.notes.rejects) != 1 || f.notes.rejects[0] != "U1" {
		t.Fatalf("expected one reject notice for U1, got %v", f.notes.rejects)
	}
	if len(f.rec.ops) != 0 {
		t.Fatalf("rejection must not mutate: %v", f.rec.ops)
	}
}

func TestHandleClick_RejectsWhenHandsNotEmpty(t *testing.T) {
	f := newFixture(t)
	tok := stashToken(t, "T1", 0, 0, Flags{})

	carrying := actingToken("P1", 0, 0)
	carrying.Flags = FlagsUpdate(Flags{Stacks: []ItemStack{{Count: 1, Item: items.ItemDoc{Name: "Torch"}}}})

	out, _ := f.interact.HandleClick(player, tok, []scene.Token{carrying})
	if out != OutcomeRejected || len(f.rec.ops) != 0 {
		t.Fatalf("expected rejection with no mutations, got %v ops=%v", out, f.rec.ops)
	}
}

func TestHandleClick_OutOfReach(t *testing.T) {
	f := newFixture(t)
	tok := stashToken(t, "T1", 500, 500, Flags{Currency: items.Currency{"gp": 5}})

	out, _ := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)})
	if out != OutcomeIgnored || len(f.rec.ops) != 0 {
		t.Fatalf("expected silent no-op, got %v ops=%v", out, f.rec.ops)
	}
}

func TestHandleClick_DiagonalNeighborIsInReach(t *testing.T) {
	f := newFixture(t)
	flags := Flags{Currency: items.Currency{"gp": 1}}
	tok := stashToken(t, "T1", 100, 100, flags)

	out, err := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)})
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if out != OutcomeInteracted {
		t.Fatalf("one diagonal cell must be reachable, got %v", out)
	}
}

func TestHandleClick_LockedBlocksEverything(t *testing.T) {
	for _, flags := range []Flags{
		{IsLocked: true, Currency: items.Currency{"gp": 10}},                                  // loose
		{IsLocked: true, IsContainer: true, CanClose: true},                                   // closed container
		{IsLocked: true, IsContainer: true, IsOpen: true, CanClose: true},                     // open container
		{IsLocked: true, IsContainer: true, IsOpen: true},                                     // terminal open
		{IsLocked: true, Stacks: []ItemStack{{Count: 3, Item: items.ItemDoc{Name: "Arrow"}}}}, // stacked loose
	} {
		f := newFixture(t)
		tok := stashToken(t, "T1", 0, 0, flags)
		out, err := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)})
		if err != nil {
			t.Fatalf("click: %v", err)
		}
		if out != OutcomeIgnored || len(f.rec.ops) != 0 {
			t.Fatalf("locked object mutated (flags=%+v): %v ops=%v", flags, out, f.rec.ops)
		}
		if len(f.notes.locks) != 1 {
			t.Fatalf("expected lock cue, got %v", f.notes.locks)
		}
	}
}

func TestHandleClick_TerminallyOpenContainerIgnored(t *testing.T) {
	f := newFixture(t)
	tok := stashToken(t, "T1", 0, 0, Flags{IsContainer: true, IsOpen: true, CanClose: false})

	out, _ := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)})
	if out != OutcomeIgnored || len(f.rec.ops) != 0 {
		t.Fatalf("expected silent no-op, got %v ops=%v", out, f.rec.ops)
	}
}

func TestHandleClick_OpensContainerAndTransfersOnce(t *testing.T) {
	f := newFixture(t)
	flags := Flags{
		IsContainer: true,
		CanClose:    true,
		ClosedImage: "icons/chest-closed.svg",
		OpenImage:   "icons/chest-open.svg",
		Currency:    items.Currency{"gp": 10},
		Stacks:      []ItemStack{{Count: 2, Item: items.ItemDoc{Name: "Arrow", Img: "icons/arrow.svg"}}},
	}
	tok := stashToken(t, "T1", 100, 0, flags)

	out, err := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)})
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if out != OutcomeInteracted {
		t.Fatalf("expected interaction, got %v", out)
	}

	want := []string{
		"update_token:T1",         // toggle open
		"update_actor:A1",         // currency transfer
		"create_owned_items:A1:2", // two discrete arrows
		"update_token:T1",         // reset to empty shell
	}
	if len(f.rec.ops) != len(want) {
		t.Fatalf("ops mismatch: got %v want %v", f.rec.ops, want)
	}
	for i := range want {
		if f.rec.ops[i] != want[i] {
			t.Fatalf("op %d: got %q want %q", i, f.rec.ops[i], want[i])
		}
	}

	// Toggle update carries the open image and open flag.
	first, ok := decodeFlags(t, f.rec.updates[0])
	if !ok || !first.IsOpen {
		t.Fatalf("toggle update lost open flag: %+v", first)
	}
	if f.rec.updates[0].Img == nil || *f.rec.updates[0].Img != "icons/chest-open.svg" {
		t.Fatalf("toggle update image wrong: %v", f.rec.updates[0].Img)
	}

	// Currency lands as absolute totals.
	if got := f.rec.actorUp[0].Currency["gp"]; got != 10 {
		t.Fatalf("expected gp total 10, got %d", got)
	}
	if len(f.notes.currency) != 1 || f.notes.currency[0] != "A1:gp:10" {
		t.Fatalf("expected one currency notification, got %v", f.notes.currency)
	}
	if len(f.notes.items) != 1 || f.notes.items[0] != "A1:Arrow:2" {
		t.Fatalf("expected one stack notification, got %v", f.notes.items)
	}

	// Reset update leaves an open empty shell.
	reset, ok := decodeFlags(t, f.rec.updates[1])
	if !ok {
		t.Fatalf("reset update missing stash flags")
	}
	if !reset.IsOpen || len(reset.Stacks) != 0 || reset.HasLoot() {
		t.Fatalf("container not reset to open empty shell: %+v", reset)
	}
	for _, d := range items.Denominations {
		if reset.Currency[d] != 0 {
			t.Fatalf("denomination %s not zeroed: %+v", d, reset.Currency)
		}
	}
}

func TestHandleClick_ClosingContainerTransfersNothing(t *testing.T) {
	f := newFixture(t)
	flags := Flags{
		IsContainer: true,
		IsOpen:      true,
		CanClose:    true,
		ClosedImage: "icons/chest-closed.svg",
		OpenImage:   "icons/chest-open.svg",
		Currency:    items.Currency{"gp": 10},
	}
	tok := stashToken(t, "T1", 0, 0, flags)

	out, err := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)})
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if out != OutcomeInteracted {
		t.Fatalf("expected interaction, got %v", out)
	}
	if len(f.rec.ops) != 1 || f.rec.ops[0] != "update_token:T1" {
		t.Fatalf("closing must relay only the toggle: %v", f.rec.ops)
	}
	closed, ok := decodeFlags(t, f.rec.updates[0])
	if !ok || closed.IsOpen {
		t.Fatalf("container did not close: %+v", closed)
	}
	// Contents survive the close untouched.
	if closed.Currency["gp"] != 10 {
		t.Fatalf("closing must not drain currency: %+v", closed.Currency)
	}
	if len(f.notes.currency) != 0 || len(f.notes.items) != 0 {
		t.Fatalf("no transfer notifications expected: %+v", f.notes)
	}
}

func TestHandleClick_EmptyOpenContainerRelaysNoTransfers(t *testing.T) {
	f := newFixture(t)
	// Open, empty, closable: the click closes it; nothing transfers.
	flags := Flags{IsContainer: true, IsOpen: true, CanClose: true, Currency: items.ZeroCurrency()}
	tok := stashToken(t, "T1", 0, 0, flags)

	if _, err := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)}); err != nil {
		t.Fatalf("click: %v", err)
	}
	for _, op := range f.rec.ops {
		if op != "update_token:T1" {
			t.Fatalf("unexpected transfer mutation %q", op)
		}
	}
}

func TestHandleClick_LoosePickupDeletesAfterTransfer(t *testing.T) {
	f := newFixture(t)
	flags := Flags{
		Currency: items.Currency{"sp": 3, "cp": 7},
		Stacks: []ItemStack{
			{Count: 1, Item: items.ItemDoc{Name: "Torch"}},
			{Count: 0, Item: items.ItemDoc{Name: "Broken Hilt"}}, // inert
		},
	}
	tok := stashToken(t, "T1", 0, 100, flags)

	out, err := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)})
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if out != OutcomeInteracted {
		t.Fatalf("expected interaction, got %v", out)
	}

	want := []string{"update_actor:A1", "create_owned_items:A1:1", "delete_token:T1"}
	if len(f.rec.ops) != len(want) {
		t.Fatalf("ops mismatch: got %v want %v", f.rec.ops, want)
	}
	for i := range want {
		if f.rec.ops[i] != want[i] {
			t.Fatalf("op %d: got %q want %q", i, f.rec.ops[i], want[i])
		}
	}
	if len(f.notes.currency) != 2 {
		t.Fatalf("expected sp and cp notifications, got %v", f.notes.currency)
	}
	if len(f.notes.items) != 1 || f.notes.items[0] != "A1:Torch:1" {
		t.Fatalf("inert stack must not notify: %v", f.notes.items)
	}
}

func TestHandleClick_DeactivatesDrag(t *testing.T) {
	f := newFixture(t)
	var dragged []string
	f.interact.DeactivateDrag = func(tokenID string) { dragged = append(dragged, tokenID) }

	tok := stashToken(t, "T1", 0, 0, Flags{Currency: items.Currency{"gp": 1}})
	if _, err := f.interact.HandleClick(player, tok, []scene.Token{actingToken("P1", 0, 0)}); err != nil {
		t.Fatalf("click: %v", err)
	}
	if len(dragged) != 1 || dragged[0] != "T1" {
		t.Fatalf("expected drag deactivation for T1, got %v", dragged)
	}
}

func decodeFlags(t *testing.T, upd scene.TokenUpdate) (Flags, bool) {
	t.Helper()
	return FlagsOf(scene.Token{Flags: upd.Flags})
}
