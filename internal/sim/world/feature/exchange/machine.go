package exchange

import (
	"time"

	"washcycle.game/internal/sim/world/feature/economy/inventory"
)

// LoadMachine moves any of the player's items into an idle machine and starts a
// work session if the machine ends up holding anything.
func LoadMachine(m *Machine, p *Player) (rec TransferRecord, started bool) {
	rec = TransferRecord{Kind: TransferMachineLoad, From: p.ID, To: m.ID}
	if !m.Idle() {
		return rec, false
	}
	rec.Items = move(p.Inv, m.Inv, inventory.AnyItem, inventory.Unlimited)
	if m.Inv.Len() == 0 {
		return rec, false
	}
	m.Session = &WorkSession{Remaining: m.WorkDuration}
	return rec, true
}

// UnloadMachine hands as much of a finished load back to the player as fits.
// Done is cleared only once the machine is empty; leftovers wait for the next
// pickup and are never washed again.
func UnloadMachine(m *Machine, p *Player) TransferRecord {
	rec := TransferRecord{Kind: TransferMachineUnload, From: m.ID, To: p.ID}
	if !m.Done {
		return rec
	}
	rec.Items = move(m.Inv, p.Inv, inventory.AnyItem, inventory.Unlimited)
	if m.Inv.Len() == 0 {
		m.Done = false
	}
	return rec
}

// Advance counts the work session down by dt. When it reaches zero the contents
// are processed, the session is dropped and Done is set.
func (m *Machine) Advance(dt time.Duration) (finished bool) {
	if m.Session == nil || dt < 0 {
		return false
	}
	m.Session.Remaining -= dt
	if m.Session.Remaining > 0 {
		return false
	}
	m.Inv.ProcessAll()
	m.Session = nil
	m.Done = true
	return true
}
