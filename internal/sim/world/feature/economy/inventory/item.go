package inventory

import "washcycle.game/internal/sim/world/logic/ids"

type ProcessedState uint8

const (
	Unprocessed ProcessedState = iota
	Processed
)

func (s ProcessedState) String() string {
	switch s {
	case Unprocessed:
		return "UNPROCESSED"
	case Processed:
		return "PROCESSED"
	default:
		return "UNKNOWN"
	}
}

func ParseProcessedState(s string) (ProcessedState, bool) {
	switch s {
	case "UNPROCESSED":
		return Unprocessed, true
	case "PROCESSED":
		return Processed, true
	}
	return Unprocessed, false
}

// Item is a named unit of inventory content. Name and owner are fixed at
// construction; state only moves forward, and only through Inventory.ProcessAll.
type Item struct {
	name  string
	owner ids.PersistentID
	state ProcessedState
}

// NewItem returns an unprocessed item. A zero owner means the item is unowned.
func NewItem(name string, owner ids.PersistentID) Item {
	return Item{name: name, owner: owner, state: Unprocessed}
}

// Restore rebuilds an item exactly as it was persisted.
func Restore(name string, owner ids.PersistentID, state ProcessedState) Item {
	return Item{name: name, owner: owner, state: state}
}

func (it Item) Name() string          { return it.name }
func (it Item) State() ProcessedState { return it.state }
func (it Item) IsProcessed() bool     { return it.state == Processed }

func (it Item) Owner() (ids.PersistentID, bool) {
	return it.owner, !it.owner.IsZero()
}

// OwnedBy reports whether the item belongs to id. Unowned items belong to nobody.
func (it Item) OwnedBy(id ids.PersistentID) bool {
	return !it.owner.IsZero() && it.owner == id
}
