package exchange

import (
	"washcycle.game/internal/sim/world/feature/economy/inventory"
)

type TransferKind string

const (
	TransferDropoff       TransferKind = "DROPOFF"
	TransferReturn        TransferKind = "RETURN"
	TransferMachineLoad   TransferKind = "MACHINE_LOAD"
	TransferMachineUnload TransferKind = "MACHINE_UNLOAD"
)

// TransferRecord describes one completed move between two holders. Items are in
// the order they were appended to the destination.
type TransferRecord struct {
	Kind  TransferKind
	From  string
	To    string
	Items []inventory.Item
}

func (r TransferRecord) Empty() bool { return len(r.Items) == 0 }

// move takes up to limit items matching match out of src, in src order, and
// appends them to dst. The selection is capped at dst's free space before
// anything leaves src, so nothing is ever created, dropped or reordered.
func move(src, dst *inventory.Inventory, match func(inventory.Item) bool, limit int) []inventory.Item {
	if src == nil || dst == nil || src == dst {
		return nil
	}
	space := dst.AvailableSpace()
	if limit < 0 || limit > space {
		limit = space
	}
	if limit <= 0 {
		return nil
	}
	removed := src.RemoveMatching(match, limit)
	accepted, rejected := dst.InsertUpTo(removed, inventory.Unlimited)
	if len(rejected) > 0 {
		// Unreachable while limit <= space; hand the items back rather than lose them.
		src.InsertUpTo(rejected, inventory.Unlimited)
	}
	return accepted
}
