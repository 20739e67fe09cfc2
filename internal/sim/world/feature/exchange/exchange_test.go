package exchange

import (
	"math/rand"
	"testing"
	"time"

	"washcycle.game/internal/protocol"
	"washcycle.game/internal/sim/world/feature/economy/inventory"
	"washcycle.game/internal/sim/world/logic/ids"
)

type fakeProx struct {
	pickup   bool
	dropoff  map[string]bool
	machines map[string]bool
}

func (f fakeProx) CustomerAtDropoff(id string) bool { return f.dropoff[id] }
func (f fakeProx) PlayerAtPickup() bool             { return f.pickup }
func (f fakeProx) PlayerNearMachine(id string) bool { return f.machines[id] }

func newIDs(t *testing.T) *ids.Generator {
	t.Helper()
	return ids.NewGenerator(rand.New(rand.NewSource(11)), func() time.Time { return time.Unix(1700000000, 0) })
}

func countEvents(out *Outcome, typ string) int {
	n := 0
	for _, e := range out.Events {
		if e.Type() == typ {
			n++
		}
	}
	return n
}

func checkConservation(t *testing.T, before, after int, rec TransferRecord, srcBefore, srcAfter, dstBefore, dstAfter int) {
	t.Helper()
	if before != after {
		t.Fatalf("total items changed: %d -> %d", before, after)
	}
	if srcBefore != srcAfter+len(rec.Items) {
		t.Fatalf("source: %d != %d + %d", srcBefore, srcAfter, len(rec.Items))
	}
	if dstAfter != dstBefore+len(rec.Items) {
		t.Fatalf("destination: %d != %d + %d", dstAfter, dstBefore, len(rec.Items))
	}
}

func TestDropoff_MovesEverythingAndCustomerWaits(t *testing.T) {
	g := newIDs(t)
	p := NewPlayer(20)
	x := NewCustomer(ids.CustomerID(1), g.New(), 5, []string{"suit", "pen"})

	var c Coordinator
	out := &Outcome{Tick: 1}
	prox := fakeProx{pickup: true, dropoff: map[string]bool{x.ID: true}}
	c.ExchangeWithCustomers(out, p, []*Customer{x}, prox)

	if p.Inv.Len() != 2 {
		t.Fatalf("expected player to hold 2 items, got %d", p.Inv.Len())
	}
	got := p.Inv.Items()
	if got[0].Name() != "suit" || got[1].Name() != "pen" {
		t.Fatalf("unexpected order: %s,%s", got[0].Name(), got[1].Name())
	}
	for _, it := range got {
		if !it.OwnedBy(x.PersistentID) || it.IsProcessed() {
			t.Fatalf("item %s lost owner or changed state", it.Name())
		}
	}
	if x.Inv.Len() != 0 {
		t.Fatalf("expected customer inventory empty, got %d", x.Inv.Len())
	}
	if x.State != CustomerWaitingForStuffBack {
		t.Fatalf("expected WaitingForStuffBack, got %s", x.State)
	}
	if len(out.Transfers) != 1 || out.Transfers[0].Kind != TransferDropoff {
		t.Fatalf("expected one dropoff transfer, got %+v", out.Transfers)
	}
	if countEvents(out, protocol.EventCustomerWaiting) != 1 {
		t.Fatalf("expected CUSTOMER_WAITING event")
	}
}

func TestReturn_TriggersDeparture(t *testing.T) {
	g := newIDs(t)
	pid := g.New()
	p := NewPlayer(20)
	p.Inv.InsertUpTo([]inventory.Item{
		inventory.Restore("suit", pid, inventory.Processed),
		inventory.Restore("pen", pid, inventory.Processed),
	}, inventory.Unlimited)
	x := &Customer{
		ID:                       ids.CustomerID(1),
		PersistentID:             pid,
		Inv:                      inventory.New(5),
		ExpectedItemCountToLeave: 2,
		State:                    CustomerWaitingForStuffBack,
	}

	var c Coordinator
	out := &Outcome{Tick: 9}
	c.ExchangeWithCustomers(out, p, []*Customer{x}, fakeProx{pickup: true, dropoff: map[string]bool{x.ID: true}})

	if x.Inv.Len() != 2 || !x.Inv.All(inventory.IsProcessed) {
		t.Fatalf("expected customer to hold 2 processed items")
	}
	if p.Inv.Len() != 0 {
		t.Fatalf("expected player empty, got %d", p.Inv.Len())
	}
	if x.State != CustomerLeaving {
		t.Fatalf("expected Leaving, got %s", x.State)
	}
	if len(out.Departures) != 1 || out.Departures[0] != x.ID {
		t.Fatalf("expected departure of %s, got %v", x.ID, out.Departures)
	}
}

func TestReturn_SkipsForeignAndUnprocessedItems(t *testing.T) {
	g := newIDs(t)
	mine, other := g.New(), g.New()
	p := NewPlayer(20)
	p.Inv.InsertUpTo([]inventory.Item{
		inventory.Restore("other-1", other, inventory.Processed),
		inventory.Restore("mine-1", mine, inventory.Processed),
		inventory.NewItem("mine-raw", mine),
		inventory.Restore("other-2", other, inventory.Processed),
		inventory.Restore("mine-2", mine, inventory.Processed),
	}, inventory.Unlimited)
	cu := &Customer{ID: ids.CustomerID(2), PersistentID: mine, Inv: inventory.New(5), ExpectedItemCountToLeave: 3, State: CustomerWaitingForStuffBack}

	srcBefore, dstBefore := p.Inv.Len(), cu.Inv.Len()
	rec := Return(cu, p)
	checkConservation(t, srcBefore+dstBefore, p.Inv.Len()+cu.Inv.Len(), rec, srcBefore, p.Inv.Len(), dstBefore, cu.Inv.Len())

	left := p.Inv.Items()
	want := []string{"other-1", "mine-raw", "other-2"}
	for i, w := range want {
		if left[i].Name() != w {
			t.Fatalf("player order broken at %d: got %s want %s", i, left[i].Name(), w)
		}
	}
	back := cu.Inv.Items()
	if back[0].Name() != "mine-1" || back[1].Name() != "mine-2" {
		t.Fatalf("unexpected returned order: %s,%s", back[0].Name(), back[1].Name())
	}
	if ReadyToLeave(cu) {
		t.Fatalf("customer expects 3 items, holds 2; must not leave")
	}
}

func TestReturn_LimitedByCustomerSpace(t *testing.T) {
	g := newIDs(t)
	pid := g.New()
	p := NewPlayer(20)
	for _, n := range []string{"a", "b", "c"} {
		p.Inv.InsertUpTo([]inventory.Item{inventory.Restore(n, pid, inventory.Processed)}, inventory.Unlimited)
	}
	cu := &Customer{ID: ids.CustomerID(3), PersistentID: pid, Inv: inventory.New(2), ExpectedItemCountToLeave: 2, State: CustomerWaitingForStuffBack}

	rec := Return(cu, p)
	if len(rec.Items) != 2 || rec.Items[0].Name() != "a" || rec.Items[1].Name() != "b" {
		t.Fatalf("expected a,b returned first, got %+v", rec.Items)
	}
	if p.Inv.Len() != 1 || p.Inv.Items()[0].Name() != "c" {
		t.Fatalf("expected c left with player")
	}
}

func TestDropoff_PartialWhenPlayerNearlyFull(t *testing.T) {
	g := newIDs(t)
	p := NewPlayer(1)
	cu := NewCustomer(ids.CustomerID(1), g.New(), 5, []string{"suit", "pen"})

	rec, waiting := Dropoff(cu, p)
	if len(rec.Items) != 1 || rec.Items[0].Name() != "suit" {
		t.Fatalf("expected only suit to move, got %+v", rec.Items)
	}
	if !waiting || cu.State != CustomerWaitingForStuffBack {
		t.Fatalf("customer must wait after a partial handover, state=%s", cu.State)
	}

	p.Inv.RemoveMatching(inventory.AnyItem, inventory.Unlimited)
	rec, waiting = Dropoff(cu, p)
	if len(rec.Items) != 1 || rec.Items[0].Name() != "pen" || waiting {
		t.Fatalf("expected pen to follow without a second transition, got %+v waiting=%v", rec.Items, waiting)
	}
	if cu.State != CustomerWaitingForStuffBack || cu.Inv.Len() != 0 {
		t.Fatalf("expected customer empty and waiting, state=%s items=%d", cu.State, cu.Inv.Len())
	}
}

func TestDropoff_FullPlayerKeepsCustomerArriving(t *testing.T) {
	g := newIDs(t)
	p := NewPlayer(1)
	p.Inv.InsertUpTo([]inventory.Item{inventory.NewItem("x", ids.PersistentID{})}, inventory.Unlimited)
	cu := NewCustomer(ids.CustomerID(1), g.New(), 5, []string{"suit"})

	rec, waiting := Dropoff(cu, p)
	if !rec.Empty() || waiting || cu.State != CustomerArriving {
		t.Fatalf("nothing moved, customer must keep arriving; got %+v waiting=%v state=%s", rec.Items, waiting, cu.State)
	}
}

func TestExchange_PartialDropoffStillGetsReturnsAndDrainsLater(t *testing.T) {
	g := newIDs(t)
	p := NewPlayer(1)
	cu := NewCustomer(ids.CustomerID(1), g.New(), 5, []string{"suit", "pen"})
	prox := fakeProx{pickup: true, dropoff: map[string]bool{cu.ID: true}}

	var c Coordinator
	out := &Outcome{Tick: 1}
	c.ExchangeWithCustomers(out, p, []*Customer{cu}, prox)
	if cu.State != CustomerWaitingForStuffBack || cu.Inv.Len() != 1 || p.Inv.Len() != 1 {
		t.Fatalf("after partial dropoff: state=%s customer=%d player=%d", cu.State, cu.Inv.Len(), p.Inv.Len())
	}
	if countEvents(out, protocol.EventCustomerWaiting) != 1 {
		t.Fatalf("expected CUSTOMER_WAITING on the partial handover")
	}

	// The machine washes the suit; the player comes back with it.
	p.Inv.ProcessAll()
	out = &Outcome{Tick: 2}
	c.ExchangeWithCustomers(out, p, []*Customer{cu}, prox)
	if p.Inv.Len() != 1 || p.Inv.Items()[0].Name() != "pen" {
		t.Fatalf("expected pen taken in place of the returned suit, player holds %d", p.Inv.Len())
	}
	if cu.Inv.Len() != 1 || cu.Inv.Items()[0].Name() != "suit" || !cu.Inv.All(inventory.IsProcessed) {
		t.Fatalf("expected customer to hold only the washed suit, holds %d", cu.Inv.Len())
	}
	if len(out.Transfers) != 2 || out.Transfers[0].Kind != TransferReturn || out.Transfers[1].Kind != TransferDropoff {
		t.Fatalf("expected return then dropoff, got %+v", out.Transfers)
	}

	out = &Outcome{Tick: 3}
	c.ExchangeWithCustomers(out, p, []*Customer{cu}, prox)
	if cu.Inv.Len() != 1 || cu.State != CustomerWaitingForStuffBack || len(out.Transfers) != 0 {
		t.Fatalf("unprocessed pen must stay with the player; customer holds %d state=%s", cu.Inv.Len(), cu.State)
	}
}

func TestExchange_NoPickupSensorMeansNoTransfer(t *testing.T) {
	g := newIDs(t)
	p := NewPlayer(20)
	cu := NewCustomer(ids.CustomerID(1), g.New(), 5, []string{"suit"})

	var c Coordinator
	out := &Outcome{}
	c.ExchangeWithCustomers(out, p, []*Customer{cu}, fakeProx{pickup: false, dropoff: map[string]bool{cu.ID: true}})
	if p.Inv.Len() != 0 || cu.Inv.Len() != 1 || len(out.Events) != 0 {
		t.Fatalf("expected nothing to happen without the pickup sensor")
	}
}

func TestExchange_OneDropoffPerTickInSpawnOrder(t *testing.T) {
	g := newIDs(t)
	p := NewPlayer(20)
	first := NewCustomer(ids.CustomerID(1), g.New(), 5, []string{"suit"})
	second := NewCustomer(ids.CustomerID(2), g.New(), 5, []string{"pen"})
	prox := fakeProx{pickup: true, dropoff: map[string]bool{first.ID: true, second.ID: true}}

	var c Coordinator
	out := &Outcome{Tick: 1}
	c.ExchangeWithCustomers(out, p, []*Customer{first, second}, prox)
	if first.State != CustomerWaitingForStuffBack || second.State != CustomerArriving {
		t.Fatalf("expected only the first customer served, got %s / %s", first.State, second.State)
	}

	out = &Outcome{Tick: 2}
	c.ExchangeWithCustomers(out, p, []*Customer{first, second}, prox)
	if second.State != CustomerWaitingForStuffBack {
		t.Fatalf("expected second customer served on the next tick")
	}
	names := []string{p.Inv.Items()[0].Name(), p.Inv.Items()[1].Name()}
	if names[0] != "suit" || names[1] != "pen" {
		t.Fatalf("unexpected player order %v", names)
	}
}

func TestInteract_MachineLoadWorkUnload(t *testing.T) {
	p := NewPlayer(20)
	p.Inv.InsertUpTo([]inventory.Item{
		inventory.NewItem("a", ids.PersistentID{}),
		inventory.NewItem("b", ids.PersistentID{}),
		inventory.NewItem("c", ids.PersistentID{}),
	}, inventory.Unlimited)
	m := NewMachine(ids.MachineID(1), 5, 5*time.Second)
	prox := fakeProx{machines: map[string]bool{m.ID: true}}

	var c Coordinator
	out := &Outcome{Tick: 1}
	c.Interact(out, "I1", p, m, prox)

	if m.Inv.Len() != 3 || p.Inv.Len() != 0 {
		t.Fatalf("expected 3 items in machine, player empty; got %d/%d", m.Inv.Len(), p.Inv.Len())
	}
	if m.Session == nil || m.Session.Remaining != 5*time.Second {
		t.Fatalf("expected work session with default duration, got %+v", m.Session)
	}
	if countEvents(out, protocol.EventMachineWorking) != 1 {
		t.Fatalf("expected MACHINE_WORKING")
	}

	// Tick past the duration.
	out = &Outcome{Tick: 2}
	c.AdvanceWork(out, []*Machine{m}, 3*time.Second)
	if m.Done || m.Session == nil {
		t.Fatalf("finished too early")
	}
	c.AdvanceWork(out, []*Machine{m}, 3*time.Second)
	if m.Session != nil || !m.Done {
		t.Fatalf("expected session removed and Done set")
	}
	if !m.Inv.All(inventory.IsProcessed) || m.Inv.Len() != 3 {
		t.Fatalf("expected all 3 items processed")
	}
	if countEvents(out, protocol.EventMachineDone) != 1 {
		t.Fatalf("expected exactly one MACHINE_DONE")
	}

	// Pickup.
	out = &Outcome{Tick: 3}
	c.Interact(out, "I2", p, m, prox)
	if p.Inv.Len() != 3 || m.Inv.Len() != 0 || m.Done {
		t.Fatalf("expected items back with player and Done cleared")
	}
}

func TestInteract_FullPlayerLeavesDoneMachineLoaded(t *testing.T) {
	p := NewPlayer(1)
	p.Inv.InsertUpTo([]inventory.Item{inventory.NewItem("held", ids.PersistentID{})}, inventory.Unlimited)
	m := NewMachine(ids.MachineID(1), 5, time.Second)
	m.Inv.InsertUpTo([]inventory.Item{
		inventory.Restore("a", ids.PersistentID{}, inventory.Processed),
		inventory.Restore("b", ids.PersistentID{}, inventory.Processed),
	}, inventory.Unlimited)
	m.Done = true
	prox := fakeProx{machines: map[string]bool{m.ID: true}}

	var c Coordinator
	out := &Outcome{Tick: 1}
	c.Interact(out, "I1", p, m, prox)
	if !m.Done || m.Session != nil || m.Inv.Len() != 2 || p.Inv.Len() != 1 {
		t.Fatalf("full player: done=%v working=%v machine=%d player=%d", m.Done, m.Working(), m.Inv.Len(), p.Inv.Len())
	}
	if len(out.Transfers) != 0 || countEvents(out, protocol.EventMachineEmptied) != 0 {
		t.Fatalf("expected no transfer and no MACHINE_EMPTIED, got %+v", out.Events)
	}
	if len(out.Events) != 1 || out.Events[0]["ok"] != false || out.Events[0]["code"] != protocol.ErrNoSpace {
		t.Fatalf("expected a no-space result, got %+v", out.Events)
	}

	// Room for one: the machine stays Done until the second pickup.
	p.Inv = inventory.New(1)
	out = &Outcome{Tick: 2}
	c.Interact(out, "I2", p, m, prox)
	if !m.Done || m.Inv.Len() != 1 || p.Inv.Len() != 1 {
		t.Fatalf("partial pickup: done=%v machine=%d player=%d", m.Done, m.Inv.Len(), p.Inv.Len())
	}

	// An empty-handed player picks up the leftover; nothing is washed again.
	p.Inv = inventory.New(1)
	out = &Outcome{Tick: 3}
	c.Interact(out, "I3", p, m, prox)
	if m.Done || m.Working() || m.Inv.Len() != 0 || p.Inv.Len() != 1 {
		t.Fatalf("final pickup: done=%v working=%v machine=%d player=%d", m.Done, m.Working(), m.Inv.Len(), p.Inv.Len())
	}
	if countEvents(out, protocol.EventMachineWorking) != 0 {
		t.Fatalf("leftovers must not start a new session")
	}
}

func TestInteract_BusyMachineIsLeftAlone(t *testing.T) {
	p := NewPlayer(20)
	p.Inv.InsertUpTo([]inventory.Item{inventory.NewItem("a", ids.PersistentID{})}, inventory.Unlimited)
	m := NewMachine(ids.MachineID(1), 5, time.Second)
	m.Inv.InsertUpTo([]inventory.Item{inventory.NewItem("z", ids.PersistentID{})}, inventory.Unlimited)
	m.Session = &WorkSession{Remaining: time.Second}

	var c Coordinator
	out := &Outcome{}
	c.Interact(out, "I1", p, m, fakeProx{machines: map[string]bool{m.ID: true}})
	if p.Inv.Len() != 1 || m.Inv.Len() != 1 {
		t.Fatalf("busy machine must not take items")
	}
	if len(out.Events) != 1 || out.Events[0]["code"] != protocol.ErrBusy {
		t.Fatalf("expected busy result, got %+v", out.Events)
	}
}

func TestInteract_EmptyLoadStartsNothing(t *testing.T) {
	p := NewPlayer(20)
	m := NewMachine(ids.MachineID(1), 5, time.Second)

	var c Coordinator
	out := &Outcome{}
	c.Interact(out, "I1", p, m, fakeProx{machines: map[string]bool{m.ID: true}})
	if m.Session != nil {
		t.Fatalf("empty machine must not start working")
	}
}

func TestInteract_OutOfRange(t *testing.T) {
	p := NewPlayer(20)
	p.Inv.InsertUpTo([]inventory.Item{inventory.NewItem("a", ids.PersistentID{})}, inventory.Unlimited)
	m := NewMachine(ids.MachineID(1), 5, time.Second)

	var c Coordinator
	out := &Outcome{Tick: 4}
	c.Interact(out, "I1", p, m, fakeProx{})

	if p.Inv.Len() != 1 || m.Inv.Len() != 0 || m.Session != nil {
		t.Fatalf("out of range interaction changed state")
	}
	if len(out.Events) != 1 || out.Events[0].Type() != protocol.EventInvalidRangeToObject || out.Events[0]["target"] != m.ID {
		t.Fatalf("expected INVALID_RANGE_TO_OBJECT for %s, got %+v", m.ID, out.Events)
	}
	if len(out.Transfers) != 0 {
		t.Fatalf("expected no transfers")
	}
}

func TestUpdateReadyLight_EmitsOnChangeOnly(t *testing.T) {
	g := newIDs(t)
	cu := NewCustomer(ids.CustomerID(1), g.New(), 5, []string{"suit"})
	var c Coordinator

	out := &Outcome{}
	c.UpdateReadyLight(out, []*Customer{cu}, fakeProx{})
	if len(out.Events) != 0 {
		t.Fatalf("light already off; no event expected")
	}

	on := fakeProx{dropoff: map[string]bool{cu.ID: true}}
	c.UpdateReadyLight(out, []*Customer{cu}, on)
	c.UpdateReadyLight(out, []*Customer{cu}, on)
	if countEvents(out, protocol.EventReadyLight) != 1 || !c.ReadyLight() {
		t.Fatalf("expected a single light-on event")
	}

	cu.Inv.RemoveMatching(inventory.AnyItem, inventory.Unlimited)
	c.UpdateReadyLight(out, []*Customer{cu}, on)
	if c.ReadyLight() || countEvents(out, protocol.EventReadyLight) != 2 {
		t.Fatalf("expected light to switch off once the customer is empty")
	}
}

func TestMove_SameInventoryIsNoop(t *testing.T) {
	inv := inventory.New(3)
	inv.InsertUpTo([]inventory.Item{inventory.NewItem("a", ids.PersistentID{})}, inventory.Unlimited)
	if got := move(inv, inv, inventory.AnyItem, inventory.Unlimited); len(got) != 0 {
		t.Fatalf("aliased move transferred %d items", len(got))
	}
	if inv.Len() != 1 {
		t.Fatalf("aliased move changed inventory")
	}
}
