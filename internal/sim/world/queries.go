package world

import (
	"washcycle.game/internal/protocol"
	"washcycle.game/internal/sim/world/feature/economy/inventory"
	"washcycle.game/internal/sim/world/feature/exchange"
	"washcycle.game/internal/sim/world/logic/ids"
)

func (w *World) handleQuery(q QueryRequest) {
	if q.Resp == nil {
		return
	}
	view, ok := w.Inventory(q.Holder)
	select {
	case q.Resp <- QueryResponse{Tick: w.tick.Load(), View: view, OK: ok}:
	default:
	}
}

// Inventory returns a copy of one holder's inventory. Must be called from the
// world loop goroutine (or while the world is not running).
func (w *World) Inventory(holder string) (InventoryView, bool) {
	switch {
	case holder == ids.PlayerID:
		return viewOf(holder, exchange.KindPlayer, w.player.Inv, ""), true
	case ids.IsCustomerID(holder):
		c := w.customerByID[holder]
		if c == nil {
			return InventoryView{}, false
		}
		return viewOf(holder, exchange.KindCustomer, c.Inv, c.State.String()), true
	case ids.IsMachineID(holder):
		m := w.machineByID[holder]
		if m == nil {
			return InventoryView{}, false
		}
		return viewOf(holder, exchange.KindMachine, m.Inv, machineState(m)), true
	}
	return InventoryView{}, false
}

// Customers lists live customer ids in spawn order.
func (w *World) Customers() []string {
	out := make([]string, 0, len(w.customers))
	for _, c := range w.customers {
		out = append(out, c.ID)
	}
	return out
}

func (w *World) Machines() []string {
	out := make([]string, 0, len(w.machines))
	for _, m := range w.machines {
		out = append(out, m.ID)
	}
	return out
}

func (w *World) ReadyLight() bool { return w.coord.ReadyLight() }

func viewOf(holder string, kind exchange.HolderKind, inv *inventory.Inventory, state string) InventoryView {
	return InventoryView{
		Holder:       holder,
		Kind:         kind,
		MaxItemCount: inv.MaxItemCount(),
		Items:        inv.Items(),
		State:        state,
	}
}

func machineState(m *exchange.Machine) string {
	switch {
	case m.Working():
		return "WORKING"
	case m.Done:
		return "DONE"
	default:
		return "IDLE"
	}
}

// Obs converts the view to its wire form.
func (v InventoryView) Obs() protocol.InventoryObs {
	items := make([]protocol.ItemObs, 0, len(v.Items))
	for _, it := range v.Items {
		o := protocol.ItemObs{Name: it.Name(), State: it.State().String()}
		if owner, ok := it.Owner(); ok {
			o.Owner = owner.String()
		}
		items = append(items, o)
	}
	return protocol.InventoryObs{
		Holder:       v.Holder,
		Kind:         string(v.Kind),
		MaxItemCount: v.MaxItemCount,
		Items:        items,
		State:        v.State,
	}
}
