package exchange

import (
	"time"

	"washcycle.game/internal/protocol"
	"washcycle.game/internal/sim/world/feature/economy/inventory"
)

// Proximity is the per-tick view of the sensor system. The coordinator never
// looks at positions; it only asks these questions.
type Proximity interface {
	CustomerAtDropoff(customerID string) bool
	PlayerAtPickup() bool
	PlayerNearMachine(machineID string) bool
}

// Outcome collects what one tick of coordination produced.
type Outcome struct {
	Tick      uint64
	Events    []protocol.Event
	Transfers []TransferRecord
	// Departures lists customers that switched to Leaving this tick, in order.
	Departures []string
}

// Emit appends an event stamped with the outcome's tick; kv alternates keys
// and values.
func (o *Outcome) Emit(typ string, kv ...interface{}) {
	e := protocol.Event{"t": o.Tick, "type": typ}
	for i := 0; i+1 < len(kv); i += 2 {
		k, _ := kv[i].(string)
		e[k] = kv[i+1]
	}
	o.Events = append(o.Events, e)
}

func (o *Outcome) record(rec TransferRecord) {
	if rec.Empty() {
		return
	}
	o.Transfers = append(o.Transfers, rec)
	names := make([]string, 0, len(rec.Items))
	for _, it := range rec.Items {
		names = append(names, it.Name())
	}
	o.Emit(protocol.EventTransfer,
		"kind", string(rec.Kind),
		"from", rec.From,
		"to", rec.To,
		"count", len(rec.Items),
		"items", names,
	)
}

// Coordinator runs the exchange rules for one tick. It is stateless apart from
// the last ready-light value, which it needs to report changes only.
type Coordinator struct {
	readyLight bool
}

func (c *Coordinator) ReadyLight() bool { return c.readyLight }

// SetReadyLight seeds the last known light state (snapshot restore).
func (c *Coordinator) SetReadyLight(on bool) { c.readyLight = on }

// ExchangeWithCustomers runs drop-off, return and departure for every customer,
// one customer at a time in the given (spawn) order.
//
// Only the first customer on the dropoff sensor with something to hand over is
// served per tick; the others wait their turn. Returns go to every waiting
// customer on the sensor, since the ownership filter keeps them apart. A
// waiting customer gets its returns before handing over leftovers.
func (c *Coordinator) ExchangeWithCustomers(out *Outcome, p *Player, customers []*Customer, prox Proximity) {
	if p == nil || !prox.PlayerAtPickup() {
		return
	}
	servedDropoff := false
	for _, cu := range customers {
		if cu == nil || !prox.CustomerAtDropoff(cu.ID) {
			continue
		}
		switch cu.State {
		case CustomerArriving:
			if servedDropoff {
				continue
			}
			servedDropoff = true
			rec, waiting := Dropoff(cu, p)
			out.record(rec)
			if waiting {
				out.Emit(protocol.EventCustomerWaiting, "customer", cu.ID)
			}
		case CustomerWaitingForStuffBack:
			out.record(Return(cu, p))
			if !servedDropoff && cu.Inv.Any(inventory.IsUnprocessed) {
				servedDropoff = true
				rec, _ := Dropoff(cu, p)
				out.record(rec)
			}
			if ReadyToLeave(cu) {
				cu.State = CustomerLeaving
				out.Departures = append(out.Departures, cu.ID)
				out.Emit(protocol.EventCustomerLeaving, "customer", cu.ID)
			}
		}
	}
}

// Interact handles a player's attempt to use machine m. Out of range attempts
// only produce an INVALID_RANGE_TO_OBJECT event.
func (c *Coordinator) Interact(out *Outcome, ref string, p *Player, m *Machine, prox Proximity) {
	if !prox.PlayerNearMachine(m.ID) {
		out.Emit(protocol.EventInvalidRangeToObject, "target", m.ID, "ref", ref)
		return
	}
	switch {
	case m.Done:
		rec := UnloadMachine(m, p)
		if rec.Empty() {
			out.Emit(protocol.EventActionResult, "ref", ref, "ok", false, "code", protocol.ErrNoSpace, "message", "player has no free space")
			return
		}
		out.record(rec)
		out.Emit(protocol.EventMachineEmptied, "machine", m.ID, "remaining", m.Inv.Len())
		out.Emit(protocol.EventActionResult, "ref", ref, "ok", true)
	case m.Working():
		out.Emit(protocol.EventActionResult, "ref", ref, "ok", false, "code", protocol.ErrBusy, "message", "machine is working")
	default:
		rec, started := LoadMachine(m, p)
		out.record(rec)
		if !started {
			out.Emit(protocol.EventActionResult, "ref", ref, "ok", false, "code", protocol.ErrInvalidTarget, "message", "nothing to wash")
			return
		}
		out.Emit(protocol.EventMachineWorking, "machine", m.ID, "remaining_ms", m.Session.Remaining.Milliseconds())
		out.Emit(protocol.EventActionResult, "ref", ref, "ok", true)
	}
}

// AdvanceWork counts down every running session by dt.
func (c *Coordinator) AdvanceWork(out *Outcome, machines []*Machine, dt time.Duration) {
	for _, m := range machines {
		if m == nil {
			continue
		}
		if m.Advance(dt) {
			out.Emit(protocol.EventMachineDone, "machine", m.ID, "count", m.Inv.Len())
		}
	}
}

// UpdateReadyLight recomputes the "ready to drop off" light: on while some
// customer on the dropoff sensor still holds unprocessed items. An event is
// emitted only when the light changes.
func (c *Coordinator) UpdateReadyLight(out *Outcome, customers []*Customer, prox Proximity) {
	on := false
	for _, cu := range customers {
		if cu != nil && prox.CustomerAtDropoff(cu.ID) && cu.Inv.Any(inventory.IsUnprocessed) {
			on = true
			break
		}
	}
	if on == c.readyLight {
		return
	}
	c.readyLight = on
	out.Emit(protocol.EventReadyLight, "on", on)
}
