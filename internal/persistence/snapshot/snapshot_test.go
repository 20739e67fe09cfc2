package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func sample() SnapshotV1 {
	return SnapshotV1{
		Header:         Header{Version: Version, WorldID: "wash_1", Tick: 42},
		Seed:           7,
		TickRate:       60,
		PlayerMaxItems: 20,
		Player: InventoryV1{MaxItemCount: 20, Items: []ItemV1{
			{Name: "suit", Owner: "01HZX3J6Y2Q8V4K9M0N1P2R3S4", State: "UNPROCESSED"},
		}},
		Customers: []CustomerV1{{ID: "C000001", PersistentID: "01HZX3J6Y2Q8V4K9M0N1P2R3S4", ExpectedItems: 2, State: "WAITING_FOR_STUFF_BACK"}},
		Machines:  []MachineV1{{ID: "M000001", WorkMs: 5000, Working: true, RemainingNanos: 1e9}},
		SpawnRNG:  []byte{1, 2, 3},
		Counters:  CountersV1{NextCustomer: 1, NextMachine: 1},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := PathFor(t.TempDir(), 42)
	want := sample()
	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header != want.Header {
		t.Fatalf("header: got %+v want %+v", got.Header, want.Header)
	}
	if len(got.Player.Items) != 1 || got.Player.Items[0] != want.Player.Items[0] {
		t.Fatalf("player items: %+v", got.Player.Items)
	}
	if len(got.Machines) != 1 || got.Machines[0].RemainingNanos != 1e9 || !got.Machines[0].Working {
		t.Fatalf("machines: %+v", got.Machines)
	}
	if got.Customers[0].State != "WAITING_FOR_STUFF_BACK" || got.Counters.NextCustomer != 1 {
		t.Fatalf("customers/counters lost: %+v %+v", got.Customers, got.Counters)
	}
	if string(got.SpawnRNG) != string(want.SpawnRNG) {
		t.Fatalf("rng state lost")
	}
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	path := PathFor(t.TempDir(), 1)
	s := sample()
	s.Header.Version = 99
	if err := WriteSnapshot(path, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestLatestPicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	if p, _, err := Latest(dir); err != nil || p != "" {
		t.Fatalf("empty dir: %q %v", p, err)
	}
	for _, tick := range []uint64{9, 120, 30} {
		if err := WriteSnapshot(PathFor(dir, tick), sample()); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, tick, err := Latest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if tick != 120 || p != PathFor(dir, 120) {
		t.Fatalf("got %s @%d", p, tick)
	}
	if _, _, err := Latest(filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
}
