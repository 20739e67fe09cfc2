package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed         int64  `json:"seed"`
	TickRate     int    `json:"tick_rate_hz"`
	EpochUnixMs  int64  `json:"epoch_unix_ms"`
	TuningDigest string `json:"tuning_digest,omitempty"`

	// Operational parameters (captured for deterministic replay/resume).
	PlayerMaxItems     int      `json:"player_max_items"`
	CustomerMaxItems   int      `json:"customer_max_items"`
	MachineMaxItems    int      `json:"machine_max_items"`
	MachineWorkMs      int64    `json:"machine_work_ms"`
	SpawnChancePerTick float64  `json:"spawn_chance_per_tick"`
	MaxCustomers       int      `json:"max_customers"`
	StarterItems       []string `json:"starter_items,omitempty"`
	SnapshotEveryTicks int      `json:"snapshot_every_ticks,omitempty"`

	ReadyLight bool      `json:"ready_light"`
	Sensors    SensorsV1 `json:"sensors"`

	Player    InventoryV1  `json:"player"`
	Customers []CustomerV1 `json:"customers"`
	Machines  []MachineV1  `json:"machines"`

	// RNG state, as produced by MarshalBinary.
	SpawnRNG []byte `json:"spawn_rng"`
	IDRNG    []byte `json:"id_rng"`

	Counters CountersV1 `json:"counters"`
}

type ItemV1 struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
	State string `json:"state"`
}

type InventoryV1 struct {
	MaxItemCount int      `json:"max_item_count"`
	Items        []ItemV1 `json:"items"`
}

type CustomerV1 struct {
	ID            string      `json:"id"`
	PersistentID  string      `json:"persistent_id"`
	Inventory     InventoryV1 `json:"inventory"`
	ExpectedItems int         `json:"expected_items"`
	State         string      `json:"state"`
	Goal          string      `json:"goal,omitempty"`
}

type MachineV1 struct {
	ID             string      `json:"id"`
	Inventory      InventoryV1 `json:"inventory"`
	WorkMs         int64       `json:"work_ms"`
	Working        bool        `json:"working"`
	RemainingNanos int64       `json:"remaining_ns,omitempty"`
	Done           bool        `json:"done"`
}

type SensorsV1 struct {
	PlayerAtPickup    bool     `json:"player_at_pickup"`
	CustomersAtDrop   []string `json:"customers_at_dropoff,omitempty"`
	PlayerNearMachine []string `json:"player_near_machine,omitempty"`
}

type CountersV1 struct {
	NextCustomer uint64 `json:"next_customer"`
	NextMachine  uint64 `json:"next_machine"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var hdr Header
	if err := json.Unmarshal(hb, &hdr); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if hdr.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// PathFor names snapshot files so that lexical order is tick order.
func PathFor(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.snap.zst", tick))
}

// Latest returns the highest-tick snapshot in dir, or "" when there is none.
func Latest(dir string) (string, uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, nil
		}
		return "", 0, err
	}
	type cand struct {
		name string
		tick uint64
	}
	var cands []cand
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		cands = append(cands, cand{name: name, tick: tick})
	}
	if len(cands) == 0 {
		return "", 0, nil
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tick < cands[j].tick })
	last := cands[len(cands)-1]
	return filepath.Join(dir, last.name), last.tick, nil
}
