package main

import (
	"fmt"

	"washcycle.game/internal/protocol"
)

// driver plays the presentation side of the shop: it walks customers to the
// dropoff and out again, and moves the player between pickup and machine.
// Movement is instant; every decision is a reaction to one EVENTS batch.
type driver struct {
	machine string

	atPickup    bool
	nearMachine bool
	seq         uint64
}

func newDriver(machine string) *driver {
	return &driver{machine: machine}
}

func (d *driver) id(kind string) string {
	d.seq++
	return fmt.Sprintf("B_%s_%d", kind, d.seq)
}

func (d *driver) proximity(sensor, target string, on bool) protocol.InputReq {
	return protocol.InputReq{ID: d.id("prox"), Type: protocol.InputProximity, Sensor: sensor, Target: target, On: on}
}

func (d *driver) goToPickup(out []protocol.InputReq) []protocol.InputReq {
	if d.nearMachine {
		out = append(out, d.proximity(protocol.SensorMachine, d.machine, false))
		d.nearMachine = false
	}
	if !d.atPickup {
		out = append(out, d.proximity(protocol.SensorPickup, "", true))
		d.atPickup = true
	}
	return out
}

func (d *driver) goToMachine(out []protocol.InputReq) []protocol.InputReq {
	if d.atPickup {
		out = append(out, d.proximity(protocol.SensorPickup, "", false))
		d.atPickup = false
	}
	if !d.nearMachine {
		out = append(out, d.proximity(protocol.SensorMachine, d.machine, true))
		d.nearMachine = true
	}
	return out
}

func (d *driver) interact(out []protocol.InputReq) []protocol.InputReq {
	return append(out, protocol.InputReq{ID: d.id("use"), Type: protocol.InputInteract, Target: d.machine})
}

// react returns the inputs to send in response to one batch of events.
func (d *driver) react(events []protocol.Event) []protocol.InputReq {
	var out []protocol.InputReq
	for _, e := range events {
		switch e.Type() {
		case protocol.EventNavGoto:
			customer := str(e, "customer")
			switch str(e, "waypoint") {
			case "DROPOFF":
				out = append(out, d.proximity(protocol.SensorDropoff, customer, true))
			case "EXIT":
				out = append(out, d.proximity(protocol.SensorDropoff, customer, false))
				out = append(out, protocol.InputReq{ID: d.id("arrive"), Type: protocol.InputArrived, Target: customer})
			}
		case protocol.EventReadyLight:
			if on, _ := e["on"].(bool); on {
				out = d.goToPickup(out)
			}
		case protocol.EventTransfer:
			switch str(e, "kind") {
			case "DROPOFF":
				out = d.goToMachine(out)
				out = d.interact(out)
			case "MACHINE_UNLOAD":
				out = d.goToPickup(out)
			}
		case protocol.EventMachineDone:
			if m := str(e, "machine"); m != "" {
				d.machine = m
			}
			out = d.goToMachine(out)
			out = d.interact(out)
		}
	}
	return out
}

func str(e protocol.Event, key string) string {
	s, _ := e[key].(string)
	return s
}
