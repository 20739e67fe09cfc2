package exchange

import (
	"time"

	"washcycle.game/internal/sim/world/feature/economy/inventory"
	"washcycle.game/internal/sim/world/logic/ids"
)

type HolderKind string

const (
	KindPlayer   HolderKind = "PLAYER"
	KindCustomer HolderKind = "CUSTOMER"
	KindMachine  HolderKind = "MACHINE"
)

type CustomerState uint8

const (
	// CustomerArriving: walking to (or standing at) the dropoff, still holding its items.
	CustomerArriving CustomerState = iota
	CustomerWaitingForStuffBack
	CustomerLeaving
)

func (s CustomerState) String() string {
	switch s {
	case CustomerArriving:
		return "ARRIVING"
	case CustomerWaitingForStuffBack:
		return "WAITING_FOR_STUFF_BACK"
	case CustomerLeaving:
		return "LEAVING"
	default:
		return "UNKNOWN"
	}
}

func ParseCustomerState(s string) (CustomerState, bool) {
	switch s {
	case "ARRIVING":
		return CustomerArriving, true
	case "WAITING_FOR_STUFF_BACK":
		return CustomerWaitingForStuffBack, true
	case "LEAVING":
		return CustomerLeaving, true
	}
	return CustomerArriving, false
}

type Player struct {
	ID  string
	Inv *inventory.Inventory
}

func NewPlayer(maxItems int) *Player {
	return &Player{ID: ids.PlayerID, Inv: inventory.New(maxItems)}
}

type Customer struct {
	ID           string
	PersistentID ids.PersistentID
	Inv          *inventory.Inventory

	// ExpectedItemCountToLeave is how many processed items the customer must hold
	// before it departs.
	ExpectedItemCountToLeave int
	State                    CustomerState
}

// NewCustomer builds a customer whose starting items are owned by pid. Items
// beyond maxItems are not created.
func NewCustomer(id string, pid ids.PersistentID, maxItems int, itemNames []string) *Customer {
	inv := inventory.New(maxItems)
	items := make([]inventory.Item, 0, len(itemNames))
	for _, name := range itemNames {
		items = append(items, inventory.NewItem(name, pid))
	}
	accepted, _ := inv.InsertUpTo(items, inventory.Unlimited)
	return &Customer{
		ID:                       id,
		PersistentID:             pid,
		Inv:                      inv,
		ExpectedItemCountToLeave: len(accepted),
		State:                    CustomerArriving,
	}
}

// WorkSession exists only while a machine is converting its contents.
type WorkSession struct {
	Remaining time.Duration
}

type Machine struct {
	ID           string
	Inv          *inventory.Inventory
	WorkDuration time.Duration

	Session *WorkSession
	Done    bool
}

func NewMachine(id string, maxItems int, workDuration time.Duration) *Machine {
	return &Machine{ID: id, Inv: inventory.New(maxItems), WorkDuration: workDuration}
}

func (m *Machine) Working() bool { return m.Session != nil }

// Idle reports whether the machine accepts a new load.
func (m *Machine) Idle() bool { return m.Session == nil && !m.Done }
