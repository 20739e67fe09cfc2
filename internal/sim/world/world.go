package world

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"washcycle.game/internal/persistence/snapshot"
	"washcycle.game/internal/sim/world/feature/exchange"
	"washcycle.game/internal/sim/world/logic/ids"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg    WorldConfig
	logger *log.Logger
	dt     time.Duration

	tick atomic.Uint64

	player       *exchange.Player
	customers    []*exchange.Customer // spawn order
	customerByID map[string]*exchange.Customer
	goals        map[string]Waypoint
	machines     []*exchange.Machine
	machineByID  map[string]*exchange.Machine

	coord   exchange.Coordinator
	sensors *sensorState
	nav     Navigator

	spawnPCG *rand.PCG
	spawnRNG *rand.Rand
	idSource *rand.ChaCha8
	ids      *ids.Generator

	nextCustomerNum uint64
	nextMachineNum  uint64

	inbox    chan InputEnvelope
	queries  chan QueryRequest
	admin    chan snapshotRequest
	stop     chan struct{}
	stopOnce sync.Once

	// Optional collaborators (may be nil).
	tickLogger   TickLogger
	auditLogger  AuditLogger
	publisher    EventPublisher
	recorder     Recorder
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value
}

type Option func(*World)

func WithLogger(l *log.Logger) Option { return func(w *World) { w.logger = l } }

func WithNavigator(n Navigator) Option { return func(w *World) { w.nav = n } }

func New(cfg WorldConfig, opts ...Option) (*World, error) {
	cfg.applyDefaults()
	w := &World{
		cfg:          cfg,
		logger:       log.New(io.Discard, "", 0),
		dt:           time.Second / time.Duration(cfg.TickRateHz),
		player:       exchange.NewPlayer(cfg.PlayerMaxItems),
		customerByID: map[string]*exchange.Customer{},
		goals:        map[string]Waypoint{},
		machineByID:  map[string]*exchange.Machine{},
		sensors:      newSensorState(),
		nav:          StaticNavigator{DropoffPoint: "DROPOFF", ExitPoint: "EXIT"},
		inbox:        make(chan InputEnvelope, 1024),
		queries:      make(chan QueryRequest, 64),
		admin:        make(chan snapshotRequest, 4),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.seedRNG(cfg.Seed)
	for i := 0; i < cfg.Machines; i++ {
		w.addMachine()
	}
	return w, nil
}

func (w *World) seedRNG(seed int64) {
	w.spawnPCG = rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15)
	w.spawnRNG = rand.New(w.spawnPCG)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	w.idSource = rand.NewChaCha8(sha256.Sum256(append([]byte("washcycle/ids/"), buf[:]...)))
	w.resetIDs()
}

// resetIDs rebinds the id generator to the current entropy source. Timestamps
// follow simulated time.
func (w *World) resetIDs() {
	w.ids = ids.NewGenerator(w.idSource, func() time.Time {
		return w.cfg.Epoch.Add(time.Duration(w.tick.Load()) * w.dt)
	})
}

func (w *World) addMachine() *exchange.Machine {
	w.nextMachineNum++
	m := exchange.NewMachine(ids.MachineID(w.nextMachineNum), w.cfg.MachineMaxItems, w.cfg.MachineWork)
	w.machines = append(w.machines, m)
	w.machineByID[m.ID] = m
	return m
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetEventPublisher(p EventPublisher)            { w.publisher = p }
func (w *World) SetRecorder(r Recorder)                        { w.recorder = r }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- InputEnvelope  { return w.inbox }
func (w *World) Queries() chan<- QueryRequest { return w.queries }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) TickDuration() time.Duration { return w.dt }

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.dt)
	defer ticker.Stop()

	var pending []InputEnvelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case env := <-w.inbox:
			pending = append(pending, env)
		case q := <-w.queries:
			w.handleQuery(q)
		case req := <-w.admin:
			w.handleSnapshotRequest(req)
		case <-ticker.C:
			w.step(pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. It is primarily intended for deterministic
// replays and tests.
func (w *World) StepOnce(inputs []InputEnvelope) TickResult {
	return w.step(inputs)
}
