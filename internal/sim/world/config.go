package world

import (
	"time"

	"washcycle.game/internal/sim/tuning"
)

// defaultEpoch anchors persistent-id timestamps to simulated time so that ids
// depend on the tick, not the wall clock.
var defaultEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64
	Epoch      time.Time

	PlayerMaxItems   int
	CustomerMaxItems int
	MachineMaxItems  int

	Machines    int
	MachineWork time.Duration

	SpawnChancePerTick float64
	MaxCustomers       int
	StarterItems       []string

	SnapshotEveryTicks int
	TuningDigest       string
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "wash_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 60
	}
	if c.Epoch.IsZero() {
		c.Epoch = defaultEpoch
	}
	if c.PlayerMaxItems < 0 {
		c.PlayerMaxItems = 0
	}
	if c.CustomerMaxItems < 0 {
		c.CustomerMaxItems = 0
	}
	if c.MachineMaxItems < 0 {
		c.MachineMaxItems = 0
	}
	if c.Machines < 0 {
		c.Machines = 0
	}
	if c.MachineWork < 0 {
		c.MachineWork = 0
	}
	if c.SpawnChancePerTick < 0 {
		c.SpawnChancePerTick = 0
	}
	if c.SpawnChancePerTick > 1 {
		c.SpawnChancePerTick = 1
	}
}

// ConfigFromTuning maps a tuning file onto a world config.
func ConfigFromTuning(id string, seed int64, t tuning.Tuning) WorldConfig {
	items := append([]string(nil), t.Spawn.StarterItems...)
	return WorldConfig{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		Seed:               seed,
		PlayerMaxItems:     t.PlayerMaxItems,
		CustomerMaxItems:   t.CustomerMaxItems,
		MachineMaxItems:    t.MachineMaxItems,
		Machines:           t.Machines,
		MachineWork:        time.Duration(t.MachineWorkMs) * time.Millisecond,
		SpawnChancePerTick: t.Spawn.ChancePerTick,
		MaxCustomers:       t.Spawn.MaxCustomers,
		StarterItems:       items,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		TuningDigest:       t.Digest(),
	}
}
