package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	persistlog "washcycle.game/internal/persistence/log"
	"washcycle.game/internal/persistence/snapshot"
	"washcycle.game/internal/protocol"
	"washcycle.game/internal/sim/world"
)

func cfg() world.WorldConfig {
	return world.WorldConfig{
		ID:                 "wash_replay",
		TickRateHz:         10,
		Seed:               99,
		PlayerMaxItems:     20,
		CustomerMaxItems:   5,
		MachineMaxItems:    5,
		Machines:           1,
		MachineWork:        300 * time.Millisecond,
		SpawnChancePerTick: 0.2,
		MaxCustomers:       3,
		StarterItems:       []string{"suit", "pen"},
	}
}

func in(typ, sensor, target string, on bool) world.InputEnvelope {
	return world.InputEnvelope{SessionID: "S1", Input: protocol.InputReq{Type: typ, Sensor: sensor, Target: target, On: on}}
}

// record runs a short session with a tick log attached and a snapshot at
// snapTick, returning the snapshot path.
func record(t *testing.T, worldDir string, ticks, snapTick uint64) string {
	t.Helper()
	w, err := world.New(cfg())
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	tl := persistlog.NewTickLogger(worldDir)
	w.SetTickLogger(tl)

	snapPath := ""
	for tick := uint64(0); tick < ticks; tick++ {
		var inputs []world.InputEnvelope
		switch tick % 7 {
		case 1:
			for _, id := range w.Customers() {
				inputs = append(inputs, in(protocol.InputProximity, protocol.SensorDropoff, id, true))
			}
		case 3:
			inputs = append(inputs, in(protocol.InputProximity, protocol.SensorMachine, "M000001", true))
			inputs = append(inputs, in(protocol.InputInteract, "", "M000001", false))
		case 5:
			inputs = append(inputs, in(protocol.InputProximity, protocol.SensorPickup, "", tick%2 == 1))
		}
		w.StepOnce(inputs)
		if tick == snapTick {
			snapPath = snapshot.PathFor(filepath.Join(worldDir, "snapshots"), tick)
			if err := snapshot.WriteSnapshot(snapPath, w.ExportSnapshot(tick)); err != nil {
				t.Fatalf("write snapshot: %v", err)
			}
		}
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}
	return snapPath
}

func TestReplayFromSnapshotVerifiesDigests(t *testing.T) {
	dir := t.TempDir()
	path := record(t, dir, 60, 20)

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	w, err := worldFromSnapshot(snap)
	if err != nil {
		t.Fatalf("%v", err)
	}
	checked, err := replay(w, dir, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 39 {
		t.Fatalf("checked=%d want 39", checked)
	}
}

func TestReplayFromGenesisStopsAtTick(t *testing.T) {
	dir := t.TempDir()
	record(t, dir, 40, 1000)

	w, err := world.New(cfg())
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	checked, err := replay(w, dir, 24)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 25 || w.CurrentTick() != 25 {
		t.Fatalf("checked=%d tick=%d", checked, w.CurrentTick())
	}
}

func TestReplayDetectsDivergence(t *testing.T) {
	dir := t.TempDir()
	record(t, dir, 30, 1000)

	other := cfg()
	other.Seed = 100
	w, err := world.New(other)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	_, err = replay(w, dir, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}
