package world

import (
	"washcycle.game/internal/protocol"
	"washcycle.game/internal/sim/world/feature/economy/inventory"
	"washcycle.game/internal/sim/world/feature/exchange"
	"washcycle.game/internal/sim/world/logic/ids"
)

func (w *World) customerCapReached() bool {
	return w.cfg.MaxCustomers > 0 && len(w.customers) >= w.cfg.MaxCustomers
}

// maybeSpawn rolls the spawn die once per tick. The roll happens even when
// the cap is reached so the random stream does not depend on population.
func (w *World) maybeSpawn(out *exchange.Outcome) {
	if w.cfg.SpawnChancePerTick <= 0 {
		return
	}
	roll := w.spawnRNG.Float64()
	if roll >= w.cfg.SpawnChancePerTick || w.customerCapReached() {
		return
	}
	w.spawnCustomer(out, w.cfg.StarterItems)
}

func (w *World) handleSpawnRequest(out *exchange.Outcome, in protocol.InputReq) {
	if w.customerCapReached() {
		w.actionResult(out, in.ID, protocol.ErrBusy, "customer limit reached")
		return
	}
	items := in.Items
	if len(items) == 0 {
		items = w.cfg.StarterItems
	}
	c := w.spawnCustomer(out, items)
	out.Emit(protocol.EventActionResult, "ref", in.ID, "ok", true, "customer", c.ID)
}

func (w *World) spawnCustomer(out *exchange.Outcome, items []string) *exchange.Customer {
	w.nextCustomerNum++
	c := exchange.NewCustomer(ids.CustomerID(w.nextCustomerNum), w.ids.New(), w.cfg.CustomerMaxItems, items)
	w.customers = append(w.customers, c)
	w.customerByID[c.ID] = c

	names := make([]string, 0, c.Inv.Len())
	for _, it := range c.Inv.Items() {
		names = append(names, it.Name())
	}
	out.Emit(protocol.EventCustomerSpawned,
		"customer", c.ID,
		"persistent_id", c.PersistentID.String(),
		"items", names,
		"expected", c.ExpectedItemCountToLeave,
	)
	if w.recorder != nil {
		w.recorder.CustomerSpawned()
	}

	if wp, ok := w.nav.Dropoff(); ok {
		w.goals[c.ID] = wp
		out.Emit(protocol.EventNavGoto, "customer", c.ID, "waypoint", string(wp))
	} else {
		w.logger.Printf("customer %s has no dropoff to walk to", c.ID)
	}
	return c
}

func (w *World) sendToExit(out *exchange.Outcome, customerID string) {
	wp, ok := w.nav.Exit()
	if !ok {
		delete(w.goals, customerID)
		w.logger.Printf("customer %s has no way to leave", customerID)
		return
	}
	w.goals[customerID] = wp
	out.Emit(protocol.EventNavGoto, "customer", customerID, "waypoint", string(wp))
}

// handleArrived: a leaving customer that reaches its goal is gone; any other
// arrival just clears the goal.
func (w *World) handleArrived(out *exchange.Outcome, in protocol.InputReq) {
	c := w.customerByID[in.Target]
	if c == nil {
		w.actionResult(out, in.ID, protocol.ErrInvalidTarget, "unknown customer")
		return
	}
	_, hasGoal := w.goals[c.ID]
	if c.State == exchange.CustomerLeaving && hasGoal {
		w.despawn(out, c, "EXIT")
		return
	}
	delete(w.goals, c.ID)
}

func (w *World) handleDespawn(out *exchange.Outcome, in protocol.InputReq) {
	c := w.customerByID[in.Target]
	if c == nil {
		w.actionResult(out, in.ID, protocol.ErrInvalidTarget, "unknown customer")
		return
	}
	if c.State != exchange.CustomerLeaving {
		w.logger.Printf("despawning customer %s in state %s with %d items", c.ID, c.State, c.Inv.Len())
	}
	w.despawn(out, c, "REQUEST")
	w.actionResult(out, in.ID, "", "")
}

// despawn removes a customer together with whatever it still holds. Items the
// player holds on its behalf stay with the player.
func (w *World) despawn(out *exchange.Outcome, c *exchange.Customer, reason string) {
	held := c.Inv.Count(inventory.AnyItem)
	for i, cu := range w.customers {
		if cu == c {
			w.customers = append(w.customers[:i], w.customers[i+1:]...)
			break
		}
	}
	delete(w.customerByID, c.ID)
	delete(w.goals, c.ID)
	w.sensors.forget(c.ID)

	out.Emit(protocol.EventCustomerDespawned, "customer", c.ID, "reason", reason, "items", held)
	if w.recorder != nil {
		w.recorder.CustomerDeparted()
	}
}
