package world

import (
	"time"

	"washcycle.game/internal/protocol"
	"washcycle.game/internal/sim/world/feature/economy/inventory"
	"washcycle.game/internal/sim/world/feature/exchange"
)

// InputEnvelope is one client input as received by the server, tagged with the
// session that sent it.
type InputEnvelope struct {
	SessionID string            `json:"session_id,omitempty"`
	Input     protocol.InputReq `json:"input"`
}

type QueryRequest struct {
	Holder string
	Resp   chan QueryResponse
}

type QueryResponse struct {
	Tick uint64
	View InventoryView
	OK   bool
}

// InventoryView is a read-only copy of one holder's inventory.
type InventoryView struct {
	Holder       string
	Kind         exchange.HolderKind
	MaxItemCount int
	Items        []inventory.Item
	State        string
}

// TickResult is what one call to StepOnce produced.
type TickResult struct {
	Tick      uint64
	Digest    string
	Events    []protocol.Event
	Transfers []exchange.TransferRecord
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// EventPublisher receives one EVENTS batch per tick that produced events.
type EventPublisher interface {
	PublishEvents(msg protocol.EventsMsg) error
}

// Recorder is the metrics surface the world reports into.
type Recorder interface {
	ObserveStep(d time.Duration)
	ObserveTransfer(kind string, items int)
	CustomerSpawned()
	CustomerDeparted()
	InvalidRange()
	SetLive(customers, workingMachines int)
}

type TickLogEntry struct {
	Tick   uint64          `json:"tick"`
	Inputs []InputEnvelope `json:"inputs,omitempty"`
	Events int             `json:"events"`
	Digest string          `json:"digest"`
}

type AuditItem struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
	State string `json:"state"`
}

type AuditEntry struct {
	Tick  uint64      `json:"tick"`
	Kind  string      `json:"kind"` // e.g. "DROPOFF"
	From  string      `json:"from"`
	To    string      `json:"to"`
	Count int         `json:"count"`
	Items []AuditItem `json:"items"`
}
