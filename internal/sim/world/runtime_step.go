package world

import (
	"time"

	"washcycle.game/internal/protocol"
	"washcycle.game/internal/sim/world/feature/exchange"
)

// Inputs are applied in phases; within a phase they keep receive order.
var inputPhases = [][]string{
	{protocol.InputSpawnCustomer},
	{protocol.InputProximity},
	{protocol.InputArrived, protocol.InputDespawn},
	{protocol.InputInteract},
}

func knownInput(typ string) bool {
	for _, phase := range inputPhases {
		if inPhase(phase, typ) {
			return true
		}
	}
	return false
}

func (w *World) step(inputs []InputEnvelope) TickResult {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	out := &exchange.Outcome{Tick: nowTick}

	recorded := make([]InputEnvelope, len(inputs))
	copy(recorded, inputs)

	for _, env := range inputs {
		if !knownInput(env.Input.Type) {
			w.actionResult(out, env.Input.ID, protocol.ErrBadRequest, "unknown input type")
		}
	}
	for i, phase := range inputPhases {
		for _, env := range inputs {
			if !inPhase(phase, env.Input.Type) {
				continue
			}
			w.applyInput(out, env.Input)
		}
		if i == 0 {
			w.maybeSpawn(out)
		}
	}

	w.coord.ExchangeWithCustomers(out, w.player, w.customers, w.sensors)
	for _, id := range out.Departures {
		w.sendToExit(out, id)
	}
	w.coord.AdvanceWork(out, w.machines, w.dt)
	w.coord.UpdateReadyLight(out, w.customers, w.sensors)

	digest := w.stateDigest(nowTick)

	for _, rec := range out.Transfers {
		if w.recorder != nil {
			w.recorder.ObserveTransfer(string(rec.Kind), len(rec.Items))
		}
		if w.auditLogger != nil {
			if err := w.auditLogger.WriteAudit(auditEntry(nowTick, rec)); err != nil {
				w.logger.Printf("audit log: %v", err)
			}
		}
	}

	if w.publisher != nil && len(out.Events) > 0 {
		msg := protocol.EventsMsg{
			Type:            protocol.TypeEvents,
			ProtocolVersion: protocol.Version,
			WorldID:         w.cfg.ID,
			Tick:            nowTick,
			Digest:          digest,
			Events:          out.Events,
		}
		if err := w.publisher.PublishEvents(msg); err != nil {
			w.logger.Printf("publish events tick=%d: %v", nowTick, err)
		}
	}

	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Inputs: recorded, Events: len(out.Events), Digest: digest}); err != nil {
			w.logger.Printf("tick log: %v", err)
		}
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	step := time.Since(stepStart)
	nextTick := w.tick.Add(1)
	w.publishMetrics(nextTick, step)

	return TickResult{Tick: nowTick, Digest: digest, Events: out.Events, Transfers: out.Transfers}
}

func inPhase(phase []string, typ string) bool {
	for _, t := range phase {
		if t == typ {
			return true
		}
	}
	return false
}

func (w *World) applyInput(out *exchange.Outcome, in protocol.InputReq) {
	switch in.Type {
	case protocol.InputSpawnCustomer:
		w.handleSpawnRequest(out, in)
	case protocol.InputProximity:
		w.handleProximity(out, in)
	case protocol.InputArrived:
		w.handleArrived(out, in)
	case protocol.InputDespawn:
		w.handleDespawn(out, in)
	case protocol.InputInteract:
		w.handleInteract(out, in)
	}
}

func (w *World) actionResult(out *exchange.Outcome, ref, code, message string) {
	if code == "" {
		out.Emit(protocol.EventActionResult, "ref", ref, "ok", true)
		return
	}
	out.Emit(protocol.EventActionResult, "ref", ref, "ok", false, "code", code, "message", message)
}

func (w *World) handleProximity(out *exchange.Outcome, in protocol.InputReq) {
	switch in.Sensor {
	case protocol.SensorPickup:
	case protocol.SensorDropoff:
		if w.customerByID[in.Target] == nil {
			w.actionResult(out, in.ID, protocol.ErrInvalidTarget, "unknown customer")
			return
		}
	case protocol.SensorMachine:
		if w.machineByID[in.Target] == nil {
			w.actionResult(out, in.ID, protocol.ErrInvalidTarget, "unknown machine")
			return
		}
	default:
		w.actionResult(out, in.ID, protocol.ErrBadRequest, "unknown sensor")
		return
	}
	w.sensors.set(in.Sensor, in.Target, in.On)
}

func (w *World) handleInteract(out *exchange.Outcome, in protocol.InputReq) {
	m := w.machineByID[in.Target]
	if m == nil {
		w.actionResult(out, in.ID, protocol.ErrInvalidTarget, "unknown machine")
		return
	}
	if !w.sensors.PlayerNearMachine(m.ID) && w.recorder != nil {
		w.recorder.InvalidRange()
	}
	w.coord.Interact(out, in.ID, w.player, m, w.sensors)
}

func auditEntry(tick uint64, rec exchange.TransferRecord) AuditEntry {
	items := make([]AuditItem, 0, len(rec.Items))
	for _, it := range rec.Items {
		ai := AuditItem{Name: it.Name(), State: it.State().String()}
		if owner, ok := it.Owner(); ok {
			ai.Owner = owner.String()
		}
		items = append(items, ai)
	}
	return AuditEntry{Tick: tick, Kind: string(rec.Kind), From: rec.From, To: rec.To, Count: len(rec.Items), Items: items}
}
