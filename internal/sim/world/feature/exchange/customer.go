package exchange

import "washcycle.game/internal/sim/world/feature/economy/inventory"

// Dropoff moves the customer's items to the player, earliest first, limited by
// the player's free space. An arriving customer starts waiting for its things
// as soon as anything was handed over (or it had nothing to hand over). A
// waiting customer that still holds unprocessed items hands over the rest.
func Dropoff(c *Customer, p *Player) (rec TransferRecord, nowWaiting bool) {
	rec = TransferRecord{Kind: TransferDropoff, From: c.ID, To: p.ID}
	switch c.State {
	case CustomerArriving:
		rec.Items = move(c.Inv, p.Inv, inventory.AnyItem, inventory.Unlimited)
		if rec.Empty() && c.Inv.Len() > 0 {
			return rec, false
		}
		c.State = CustomerWaitingForStuffBack
		return rec, true
	case CustomerWaitingForStuffBack:
		rec.Items = move(c.Inv, p.Inv, inventory.IsUnprocessed, inventory.Unlimited)
	}
	return rec, false
}

// Return gives back the customer's processed items in player order. Items that
// belong to someone else, or are not processed yet, stay where they are.
func Return(c *Customer, p *Player) TransferRecord {
	rec := TransferRecord{Kind: TransferReturn, From: p.ID, To: c.ID}
	if c.State != CustomerWaitingForStuffBack {
		return rec
	}
	rec.Items = move(p.Inv, c.Inv, inventory.ReturnableTo(c.PersistentID), inventory.Unlimited)
	return rec
}

// ReadyToLeave reports whether the customer holds exactly what it expects back,
// all of it processed.
func ReadyToLeave(c *Customer) bool {
	return c.State == CustomerWaitingForStuffBack &&
		c.Inv.Len() == c.ExpectedItemCountToLeave &&
		c.Inv.All(inventory.IsProcessed)
}
