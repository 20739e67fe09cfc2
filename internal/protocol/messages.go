package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	WorldID         string       `json:"world_id"`
	Tick            uint64       `json:"tick"`
	WorldParams     WorldParams  `json:"world_params"`
	Player          InventoryObs `json:"player"`
}

type WorldParams struct {
	TickRateHz        int    `json:"tick_rate_hz"`
	PlayerMaxItems    int    `json:"player_max_items"`
	CustomerMaxItems  int    `json:"customer_max_items"`
	MachineMaxItems   int    `json:"machine_max_items"`
	MachineWorkMillis int64  `json:"machine_work_ms"`
	Seed              int64  `json:"seed"`
	TuningDigest      string `json:"tuning_digest,omitempty"`
}

// INPUT (client -> server): collaborator signals applied at the next tick boundary.
type InputMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick,omitempty"`
	Inputs          []InputReq `json:"inputs"`
}

// Input kinds.
const (
	InputInteract      = "INTERACT"
	InputProximity     = "PROXIMITY"
	InputArrived       = "ARRIVED"
	InputSpawnCustomer = "SPAWN_CUSTOMER"
	InputDespawn       = "DESPAWN"
)

// Sensors reported by PROXIMITY inputs.
const (
	SensorDropoff = "DROPOFF" // a customer stands on the dropoff sensor (target = customer)
	SensorPickup  = "PICKUP"  // the player stands on the pickup sensor
	SensorMachine = "MACHINE" // the player is near a machine (target = machine)
)

type InputReq struct {
	ID     string   `json:"id,omitempty"`
	Type   string   `json:"type"`
	Target string   `json:"target,omitempty"`
	Sensor string   `json:"sensor,omitempty"`
	On     bool     `json:"on,omitempty"`
	Items  []string `json:"items,omitempty"`
}

// EVENTS (server -> client): everything the world emitted during one tick.
type EventsMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	WorldID         string  `json:"world_id,omitempty"`
	Tick            uint64  `json:"tick"`
	Digest          string  `json:"digest,omitempty"`
	Events          []Event `json:"events"`
}

// INVENTORY_REQ (client -> server)
type InventoryReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Holder          string `json:"holder"`
}

// INVENTORY (server -> client)
type InventoryMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	ReqID           string        `json:"req_id"`
	Tick            uint64        `json:"tick"`
	Code            string        `json:"code,omitempty"`
	Inventory       *InventoryObs `json:"inventory,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
	// Rejected lists the ids of INPUT entries that were not queued.
	Rejected []string `json:"rejected,omitempty"`
}

type InventoryObs struct {
	Holder       string    `json:"holder"`
	Kind         string    `json:"kind"`
	MaxItemCount int       `json:"max_item_count"`
	Items        []ItemObs `json:"items"`
	State        string    `json:"state,omitempty"`
}

type ItemObs struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
	State string `json:"state"`
}
