package world

import (
	"washcycle.game/internal/sim/world/feature/economy/inventory"
	"washcycle.game/internal/sim/world/io/digestcodec"
)

func (w *World) stateDigest(nowTick uint64) string {
	d := digestcodec.New()

	d.String(w.cfg.ID)
	d.U64(nowTick)
	d.U64(w.nextCustomerNum)
	d.U64(w.nextMachineNum)
	d.Bool(w.coord.ReadyLight())

	d.Bool(w.sensors.playerAtPickup)
	d.SortedKeys(w.sensors.customersAtDropoff)
	d.SortedKeys(w.sensors.playerNearMachine)

	digestInventory(d, w.player.Inv)

	d.U64(uint64(len(w.customers)))
	for _, c := range w.customers {
		d.String(c.ID)
		d.String(c.PersistentID.String())
		d.U64(uint64(c.State))
		d.I64(int64(c.ExpectedItemCountToLeave))
		d.String(string(w.goals[c.ID]))
		digestInventory(d, c.Inv)
	}

	d.U64(uint64(len(w.machines)))
	for _, m := range w.machines {
		d.String(m.ID)
		d.Bool(m.Working())
		if m.Session != nil {
			d.I64(int64(m.Session.Remaining))
		}
		d.Bool(m.Done)
		digestInventory(d, m.Inv)
	}

	return d.Hex()
}

func digestInventory(d *digestcodec.Writer, inv *inventory.Inventory) {
	d.I64(int64(inv.MaxItemCount()))
	items := inv.Items()
	d.U64(uint64(len(items)))
	for _, it := range items {
		d.String(it.Name())
		if owner, ok := it.Owner(); ok {
			d.String(owner.String())
		} else {
			d.String("")
		}
		d.U64(uint64(it.State()))
	}
}
