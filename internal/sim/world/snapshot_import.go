package world

import (
	"fmt"
	"math/rand/v2"
	"time"

	"washcycle.game/internal/persistence/snapshot"
	"washcycle.game/internal/sim/world/feature/exchange"
	"washcycle.game/internal/sim/world/io/snapshotcodec"
	"washcycle.game/internal/sim/world/logic/ids"
)

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if w.cfg.Seed != s.Seed {
		return fmt.Errorf("snapshot seed mismatch: cfg=%d snap=%d", w.cfg.Seed, s.Seed)
	}
	if w.cfg.TickRateHz != s.TickRate {
		return fmt.Errorf("snapshot tick_rate_hz mismatch: cfg=%d snap=%d", w.cfg.TickRateHz, s.TickRate)
	}

	player, err := snapshotcodec.DecodeInventory(s.Player)
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}

	customers := make([]*exchange.Customer, 0, len(s.Customers))
	customerByID := make(map[string]*exchange.Customer, len(s.Customers))
	goals := map[string]Waypoint{}
	for _, cv := range s.Customers {
		if !ids.IsCustomerID(cv.ID) || customerByID[cv.ID] != nil {
			return fmt.Errorf("customer %q: bad or duplicate id", cv.ID)
		}
		pid, err := ids.ParsePersistentID(cv.PersistentID)
		if err != nil {
			return fmt.Errorf("customer %s: %w", cv.ID, err)
		}
		inv, err := snapshotcodec.DecodeInventory(cv.Inventory)
		if err != nil {
			return fmt.Errorf("customer %s: %w", cv.ID, err)
		}
		state, ok := exchange.ParseCustomerState(cv.State)
		if !ok {
			return fmt.Errorf("customer %s: bad state %q", cv.ID, cv.State)
		}
		c := &exchange.Customer{
			ID:                       cv.ID,
			PersistentID:             pid,
			Inv:                      inv,
			ExpectedItemCountToLeave: cv.ExpectedItems,
			State:                    state,
		}
		customers = append(customers, c)
		customerByID[c.ID] = c
		if cv.Goal != "" {
			goals[c.ID] = Waypoint(cv.Goal)
		}
	}

	machines := make([]*exchange.Machine, 0, len(s.Machines))
	machineByID := make(map[string]*exchange.Machine, len(s.Machines))
	for _, mv := range s.Machines {
		if !ids.IsMachineID(mv.ID) || machineByID[mv.ID] != nil {
			return fmt.Errorf("machine %q: bad or duplicate id", mv.ID)
		}
		inv, err := snapshotcodec.DecodeInventory(mv.Inventory)
		if err != nil {
			return fmt.Errorf("machine %s: %w", mv.ID, err)
		}
		m := &exchange.Machine{ID: mv.ID, Inv: inv, WorkDuration: msDuration(mv.WorkMs), Done: mv.Done}
		if mv.Working {
			m.Session = &exchange.WorkSession{Remaining: time.Duration(mv.RemainingNanos)}
		}
		machines = append(machines, m)
		machineByID[m.ID] = m
	}

	spawnPCG, idSource := w.spawnPCG, w.idSource
	if len(s.SpawnRNG) > 0 {
		spawnPCG = new(rand.PCG)
		if err := spawnPCG.UnmarshalBinary(s.SpawnRNG); err != nil {
			return fmt.Errorf("spawn rng: %w", err)
		}
	}
	if len(s.IDRNG) > 0 {
		idSource = new(rand.ChaCha8)
		if err := idSource.UnmarshalBinary(s.IDRNG); err != nil {
			return fmt.Errorf("id rng: %w", err)
		}
	}
	w.spawnPCG = spawnPCG
	w.spawnRNG = rand.New(spawnPCG)
	w.idSource = idSource

	// Operational parameters: snapshot is authoritative.
	w.cfg.PlayerMaxItems = s.PlayerMaxItems
	w.cfg.CustomerMaxItems = s.CustomerMaxItems
	w.cfg.MachineMaxItems = s.MachineMaxItems
	w.cfg.MachineWork = msDuration(s.MachineWorkMs)
	w.cfg.SpawnChancePerTick = s.SpawnChancePerTick
	w.cfg.MaxCustomers = s.MaxCustomers
	w.cfg.StarterItems = append([]string(nil), s.StarterItems...)
	if s.SnapshotEveryTicks > 0 {
		w.cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}
	if s.EpochUnixMs != 0 {
		w.cfg.Epoch = time.UnixMilli(s.EpochUnixMs).UTC()
	}
	if s.TuningDigest != "" && w.cfg.TuningDigest != "" && s.TuningDigest != w.cfg.TuningDigest {
		w.logger.Printf("snapshot tuning digest %s differs from loaded tuning %s; using snapshot values", s.TuningDigest, w.cfg.TuningDigest)
	}
	w.cfg.TuningDigest = s.TuningDigest

	w.player = &exchange.Player{ID: ids.PlayerID, Inv: player}
	w.customers = customers
	w.customerByID = customerByID
	w.goals = goals
	w.machines = machines
	w.machineByID = machineByID

	w.sensors = newSensorState()
	w.sensors.playerAtPickup = s.Sensors.PlayerAtPickup
	for _, id := range s.Sensors.CustomersAtDrop {
		w.sensors.customersAtDropoff[id] = true
	}
	for _, id := range s.Sensors.PlayerNearMachine {
		w.sensors.playerNearMachine[id] = true
	}
	w.coord.SetReadyLight(s.ReadyLight)

	// Counters never go below an id already in use.
	w.nextCustomerNum = s.Counters.NextCustomer
	for _, c := range customers {
		if n, ok := ids.ParseCustomerNum(c.ID); ok {
			w.nextCustomerNum = ids.MaxU64(w.nextCustomerNum, n)
		}
	}
	w.nextMachineNum = s.Counters.NextMachine
	for _, m := range machines {
		if n, ok := ids.ParseMachineNum(m.ID); ok {
			w.nextMachineNum = ids.MaxU64(w.nextMachineNum, n)
		}
	}
	w.tick.Store(s.Header.Tick + 1)
	w.resetIDs()
	return nil
}
