package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Customers       int  `json:"customers"`
	Machines        int  `json:"machines"`
	WorkingMachines int  `json:"working_machines"`
	PlayerItems     int  `json:"player_items"`
	ReadyLight      bool `json:"ready_light"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox   int `json:"inbox"`
	Queries int `json:"queries"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(nextTick uint64, step time.Duration) {
	working := 0
	for _, m := range w.machines {
		if m.Working() {
			working++
		}
	}
	w.metrics.Store(WorldMetrics{
		Tick:            nextTick,
		Customers:       len(w.customers),
		Machines:        len(w.machines),
		WorkingMachines: working,
		PlayerItems:     w.player.Inv.Len(),
		ReadyLight:      w.coord.ReadyLight(),
		QueueDepths: QueueDepths{
			Inbox:   len(w.inbox),
			Queries: len(w.queries),
		},
		StepMS: float64(step.Microseconds()) / 1000.0,
	})
	if w.recorder != nil {
		w.recorder.ObserveStep(step)
		w.recorder.SetLive(len(w.customers), working)
	}
}
