package snapshotcodec

import (
	"fmt"
	"sort"

	"washcycle.game/internal/persistence/snapshot"
	"washcycle.game/internal/sim/world/feature/economy/inventory"
	"washcycle.game/internal/sim/world/logic/ids"
)

func EncodeInventory(inv *inventory.Inventory) snapshot.InventoryV1 {
	out := snapshot.InventoryV1{MaxItemCount: inv.MaxItemCount(), Items: []snapshot.ItemV1{}}
	for _, it := range inv.Items() {
		v := snapshot.ItemV1{Name: it.Name(), State: it.State().String()}
		if owner, ok := it.Owner(); ok {
			v.Owner = owner.String()
		}
		out.Items = append(out.Items, v)
	}
	return out
}

// DecodeInventory rebuilds an inventory. A snapshot holding more items than
// its capacity is rejected rather than truncated.
func DecodeInventory(v snapshot.InventoryV1) (*inventory.Inventory, error) {
	inv := inventory.New(v.MaxItemCount)
	items := make([]inventory.Item, 0, len(v.Items))
	for i, iv := range v.Items {
		state, ok := inventory.ParseProcessedState(iv.State)
		if !ok {
			return nil, fmt.Errorf("item %d: bad state %q", i, iv.State)
		}
		var owner ids.PersistentID
		if iv.Owner != "" {
			pid, err := ids.ParsePersistentID(iv.Owner)
			if err != nil {
				return nil, fmt.Errorf("item %d: owner: %w", i, err)
			}
			owner = pid
		}
		items = append(items, inventory.Restore(iv.Name, owner, state))
	}
	if _, rejected := inv.InsertUpTo(items, inventory.Unlimited); len(rejected) > 0 {
		return nil, fmt.Errorf("inventory over capacity: %d items, max %d", len(v.Items), v.MaxItemCount)
	}
	return inv, nil
}

// SortedTrue lists the keys of a boolean set whose value is true.
func SortedTrue(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v && k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
