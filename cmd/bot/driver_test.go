package main

import (
	"testing"
	"time"

	"washcycle.game/internal/protocol"
	"washcycle.game/internal/sim/world"
)

func TestDriverServesCustomersEndToEnd(t *testing.T) {
	w, err := world.New(world.WorldConfig{
		ID:               "wash_bot",
		TickRateHz:       20,
		Seed:             5,
		PlayerMaxItems:   20,
		CustomerMaxItems: 5,
		MachineMaxItems:  5,
		Machines:         1,
		MachineWork:      500 * time.Millisecond,
		MaxCustomers:     2,
		StarterItems:     []string{"suit", "pen"},
	})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	d := newDriver("M000001")

	envelopes := func(reqs []protocol.InputReq) []world.InputEnvelope {
		out := make([]world.InputEnvelope, 0, len(reqs))
		for _, r := range reqs {
			out = append(out, world.InputEnvelope{SessionID: "S_bot", Input: r})
		}
		return out
	}

	pending := envelopes([]protocol.InputReq{
		{ID: "s1", Type: protocol.InputSpawnCustomer},
		{ID: "s2", Type: protocol.InputSpawnCustomer, Items: []string{"shirt"}},
	})
	despawned := map[string]bool{}
	for i := 0; i < 400 && len(despawned) < 2; i++ {
		res := w.StepOnce(pending)
		for _, e := range res.Events {
			if e.Type() == protocol.EventCustomerDespawned && str(e, "reason") == "EXIT" {
				despawned[str(e, "customer")] = true
			}
			if e.Type() == protocol.EventInvalidRangeToObject {
				t.Fatalf("driver interacted out of range at tick %d", res.Tick)
			}
		}
		pending = envelopes(d.react(res.Events))
	}
	if len(despawned) != 2 {
		t.Fatalf("customers served=%v", despawned)
	}
	view, _ := w.Inventory("PLAYER")
	if len(view.Items) != 0 {
		t.Fatalf("player kept items: %+v", view.Items)
	}
}

func TestDriverReactions(t *testing.T) {
	d := newDriver("M000001")
	got := d.react([]protocol.Event{
		{"type": protocol.EventNavGoto, "customer": "C000001", "waypoint": "DROPOFF"},
		{"type": protocol.EventReadyLight, "on": true},
	})
	if len(got) != 2 || got[0].Sensor != protocol.SensorDropoff || !got[0].On || got[1].Sensor != protocol.SensorPickup {
		t.Fatalf("arrival reactions: %+v", got)
	}

	// Already at pickup: a second light does nothing.
	if got := d.react([]protocol.Event{{"type": protocol.EventReadyLight, "on": true}}); len(got) != 0 {
		t.Fatalf("expected no inputs, got %+v", got)
	}

	got = d.react([]protocol.Event{{"type": protocol.EventNavGoto, "customer": "C000001", "waypoint": "EXIT"}})
	if len(got) != 2 || got[0].On || got[1].Type != protocol.InputArrived || got[1].Target != "C000001" {
		t.Fatalf("exit reactions: %+v", got)
	}
}
