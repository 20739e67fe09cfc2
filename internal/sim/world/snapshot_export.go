package world

import (
	"time"

	"washcycle.game/internal/persistence/snapshot"
	"washcycle.game/internal/sim/world/io/snapshotcodec"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	// Snapshot must be called from the world loop goroutine.
	spawnRNG, err := w.spawnPCG.MarshalBinary()
	if err != nil {
		w.logger.Printf("snapshot spawn rng: %v", err)
	}
	idRNG, err := w.idSource.MarshalBinary()
	if err != nil {
		w.logger.Printf("snapshot id rng: %v", err)
	}

	customers := make([]snapshot.CustomerV1, 0, len(w.customers))
	for _, c := range w.customers {
		customers = append(customers, snapshot.CustomerV1{
			ID:            c.ID,
			PersistentID:  c.PersistentID.String(),
			Inventory:     snapshotcodec.EncodeInventory(c.Inv),
			ExpectedItems: c.ExpectedItemCountToLeave,
			State:         c.State.String(),
			Goal:          string(w.goals[c.ID]),
		})
	}
	machines := make([]snapshot.MachineV1, 0, len(w.machines))
	for _, m := range w.machines {
		mv := snapshot.MachineV1{
			ID:        m.ID,
			Inventory: snapshotcodec.EncodeInventory(m.Inv),
			WorkMs:    m.WorkDuration.Milliseconds(),
			Working:   m.Working(),
			Done:      m.Done,
		}
		if m.Session != nil {
			mv.RemainingNanos = int64(m.Session.Remaining)
		}
		machines = append(machines, mv)
	}

	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		Seed:               w.cfg.Seed,
		TickRate:           w.cfg.TickRateHz,
		EpochUnixMs:        w.cfg.Epoch.UnixMilli(),
		TuningDigest:       w.cfg.TuningDigest,
		PlayerMaxItems:     w.cfg.PlayerMaxItems,
		CustomerMaxItems:   w.cfg.CustomerMaxItems,
		MachineMaxItems:    w.cfg.MachineMaxItems,
		MachineWorkMs:      w.cfg.MachineWork.Milliseconds(),
		SpawnChancePerTick: w.cfg.SpawnChancePerTick,
		MaxCustomers:       w.cfg.MaxCustomers,
		StarterItems:       append([]string(nil), w.cfg.StarterItems...),
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		ReadyLight:         w.coord.ReadyLight(),
		Sensors: snapshot.SensorsV1{
			PlayerAtPickup:    w.sensors.playerAtPickup,
			CustomersAtDrop:   snapshotcodec.SortedTrue(w.sensors.customersAtDropoff),
			PlayerNearMachine: snapshotcodec.SortedTrue(w.sensors.playerNearMachine),
		},
		Player:    snapshotcodec.EncodeInventory(w.player.Inv),
		Customers: customers,
		Machines:  machines,
		SpawnRNG:  spawnRNG,
		IDRNG:     idRNG,
		Counters: snapshot.CountersV1{
			NextCustomer: w.nextCustomerNum,
			NextMachine:  w.nextMachineNum,
		},
	}
}

func msDuration(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }
