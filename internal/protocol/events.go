package protocol

// Event is a loosely typed presentation event. Every event carries "t" (tick)
// and "type"; the remaining keys depend on the type.
type Event map[string]interface{}

// Event types.
const (
	EventReadyLight           = "READY_LIGHT"
	EventInvalidRangeToObject = "INVALID_RANGE_TO_OBJECT"
	EventMachineWorking       = "MACHINE_WORKING"
	EventMachineDone          = "MACHINE_DONE"
	EventMachineEmptied       = "MACHINE_EMPTIED"
	EventCustomerSpawned      = "CUSTOMER_SPAWNED"
	EventCustomerWaiting      = "CUSTOMER_WAITING"
	EventCustomerLeaving      = "CUSTOMER_LEAVING"
	EventCustomerDespawned    = "CUSTOMER_DESPAWNED"
	EventNavGoto              = "NAV_GOTO"
	EventTransfer             = "TRANSFER"
	EventActionResult         = "ACTION_RESULT"
)

func (e Event) Type() string {
	s, _ := e["type"].(string)
	return s
}
