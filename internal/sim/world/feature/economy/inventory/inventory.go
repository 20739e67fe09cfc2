package inventory

import "washcycle.game/internal/sim/world/logic/ids"

// Unlimited disables the count limit of InsertUpTo and RemoveMatching.
const Unlimited = -1

// Inventory is a bounded, ordered collection of items owned by exactly one
// holder. len(items) never exceeds the capacity; mutations that would overflow
// are truncated instead.
type Inventory struct {
	maxItemCount int
	items        []Item
}

func New(maxItemCount int) *Inventory {
	if maxItemCount < 0 {
		maxItemCount = 0
	}
	return &Inventory{maxItemCount: maxItemCount}
}

func (inv *Inventory) MaxItemCount() int { return inv.maxItemCount }
func (inv *Inventory) Len() int          { return len(inv.items) }

func (inv *Inventory) AvailableSpace() int {
	return inv.maxItemCount - len(inv.items)
}

// Items returns a copy of the contents in insertion order.
func (inv *Inventory) Items() []Item {
	out := make([]Item, len(inv.items))
	copy(out, inv.items)
	return out
}

// InsertUpTo appends min(len(candidates), AvailableSpace(), limit) candidates in
// the given order. Candidates that do not fit are returned untouched so the
// caller can decide what happens to them.
func (inv *Inventory) InsertUpTo(candidates []Item, limit int) (accepted, rejected []Item) {
	n := len(candidates)
	if space := inv.AvailableSpace(); space < n {
		n = space
	}
	if limit >= 0 && limit < n {
		n = limit
	}
	if n < 0 {
		n = 0
	}
	accepted = candidates[:n:n]
	rejected = candidates[n:]
	inv.items = append(inv.items, accepted...)
	return accepted, rejected
}

// RemoveMatching removes, in existing order, up to limit items satisfying
// match. Items left behind keep their relative order.
func (inv *Inventory) RemoveMatching(match func(Item) bool, limit int) []Item {
	if limit == 0 || len(inv.items) == 0 {
		return nil
	}
	var removed []Item
	kept := inv.items[:0]
	for _, it := range inv.items {
		if (limit < 0 || len(removed) < limit) && match(it) {
			removed = append(removed, it)
			continue
		}
		kept = append(kept, it)
	}
	// Clear the tail so removed items are not retained by the backing array.
	for i := len(kept); i < len(inv.items); i++ {
		inv.items[i] = Item{}
	}
	inv.items = kept
	return removed
}

// ProcessAll marks every held item processed. Already processed items are
// unaffected, so calling it repeatedly is harmless.
func (inv *Inventory) ProcessAll() {
	for i := range inv.items {
		inv.items[i].state = Processed
	}
}

func (inv *Inventory) Count(match func(Item) bool) int {
	n := 0
	for _, it := range inv.items {
		if match(it) {
			n++
		}
	}
	return n
}

func (inv *Inventory) Any(match func(Item) bool) bool {
	for _, it := range inv.items {
		if match(it) {
			return true
		}
	}
	return false
}

func (inv *Inventory) All(match func(Item) bool) bool {
	for _, it := range inv.items {
		if !match(it) {
			return false
		}
	}
	return true
}

// Matchers.

func AnyItem(Item) bool          { return true }
func IsUnprocessed(it Item) bool { return it.state == Unprocessed }
func IsProcessed(it Item) bool   { return it.state == Processed }

// ReturnableTo matches processed items owned by id.
func ReturnableTo(id ids.PersistentID) func(Item) bool {
	return func(it Item) bool {
		return it.state == Processed && it.OwnedBy(id)
	}
}
