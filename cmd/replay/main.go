package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "washcycle.game/internal/persistence/log"
	"washcycle.game/internal/persistence/snapshot"
	"washcycle.game/internal/sim/tuning"
	"washcycle.game/internal/sim/world"
)

func main() {
	var (
		worldDir   = flag.String("world_dir", "./data/worlds/wash_1", "world data directory")
		snapPath   = flag.String("snapshot", "", "path to .snap.zst (default: latest under <world_dir>/snapshots)")
		genesis    = flag.Bool("genesis", false, "replay from tick 0 instead of a snapshot")
		seed       = flag.Int64("seed", 1337, "world seed (genesis replays only)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning file (genesis replays only)")
		verify     = flag.Bool("verify", true, "re-simulate logged ticks and compare digests")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	var w *world.World
	if *genesis {
		tune, err := tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		w, err = world.New(world.ConfigFromTuning(filepath.Base(*worldDir), *seed, tune))
		if err != nil {
			fmt.Fprintln(os.Stderr, "world:", err)
			os.Exit(1)
		}
		fmt.Printf("genesis world=%s seed=%d\n", w.ID(), *seed)
	} else {
		path := *snapPath
		if path == "" {
			latest, _, err := snapshot.Latest(filepath.Join(*worldDir, "snapshots"))
			if err != nil || latest == "" {
				fmt.Fprintln(os.Stderr, "no snapshot found under", *worldDir, err)
				os.Exit(2)
			}
			path = latest
		}
		snap, err := snapshot.ReadSnapshot(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d world=%s tick=%d seed=%d customers=%d machines=%d player_items=%d ready_light=%t\n",
			snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
			len(snap.Customers), len(snap.Machines), len(snap.Player.Items), snap.ReadyLight)

		w, err = worldFromSnapshot(snap)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if !*verify {
		return
	}
	start := w.CurrentTick()
	checked, err := replay(w, *worldDir, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (from tick=%d)\n", checked, start)
}

func worldFromSnapshot(snap snapshot.SnapshotV1) (*world.World, error) {
	w, err := world.New(world.WorldConfig{
		ID:         snap.Header.WorldID,
		TickRateHz: snap.TickRate,
		Seed:       snap.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return w, nil
}

var errDone = errors.New("done")

// replay feeds every logged tick at or after the world's current tick back
// through StepOnce and checks that the digests match.
func replay(w *world.World, worldDir string, toTick uint64) (uint64, error) {
	start := w.CurrentTick()
	var checked uint64
	err := persistlog.ReadTickLogs(worldDir, func(entry world.TickLogEntry) error {
		if entry.Tick < start {
			return nil
		}
		if toTick != 0 && entry.Tick > toTick {
			return errDone
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick gap: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}
		res := w.StepOnce(entry.Inputs)
		if res.Digest != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", res.Tick, res.Digest, entry.Digest)
		}
		checked++
		return nil
	})
	if err != nil && !errors.Is(err, errDone) {
		return checked, err
	}
	return checked, nil
}
