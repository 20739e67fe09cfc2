package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"washcycle.game/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		_, tick, err := snapshot.Latest(filepath.Join(base, e.Name(), "snapshots"))
		if err != nil {
			fmt.Printf("%s\t(snapshots unreadable: %v)\n", e.Name(), err)
			continue
		}
		fmt.Printf("%s\tlatest_snapshot_tick=%d\n", e.Name(), tick)
	}
}

// inspectCmd prints a snapshot's holders as JSON lines.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "wash_1", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := *snapPath
	if path == "" {
		latest, _, err := snapshot.Latest(filepath.Join(*dataDir, "worlds", *worldID, "snapshots"))
		if err != nil || latest == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found", err)
			os.Exit(2)
		}
		path = latest
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	printJSON(map[string]any{
		"world_id":    snap.Header.WorldID,
		"tick":        snap.Header.Tick,
		"seed":        snap.Seed,
		"ready_light": snap.ReadyLight,
		"sensors":     snap.Sensors,
	})
	printJSON(map[string]any{"holder": "PLAYER", "inventory": snap.Player})
	for _, c := range snap.Customers {
		printJSON(map[string]any{"holder": c.ID, "state": c.State, "expected_items": c.ExpectedItems, "inventory": c.Inventory})
	}
	for _, m := range snap.Machines {
		printJSON(map[string]any{"holder": m.ID, "working": m.Working, "done": m.Done, "inventory": m.Inventory})
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
