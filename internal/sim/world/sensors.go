package world

import (
	"washcycle.game/internal/protocol"
)

// sensorState holds the latest proximity signal per holder pair, as reported by
// PROXIMITY inputs. It answers the coordinator's questions for the tick.
type sensorState struct {
	playerAtPickup     bool
	customersAtDropoff map[string]bool
	playerNearMachine  map[string]bool
}

func newSensorState() *sensorState {
	return &sensorState{
		customersAtDropoff: map[string]bool{},
		playerNearMachine:  map[string]bool{},
	}
}

func (s *sensorState) CustomerAtDropoff(customerID string) bool {
	return s.customersAtDropoff[customerID]
}
func (s *sensorState) PlayerAtPickup() bool                    { return s.playerAtPickup }
func (s *sensorState) PlayerNearMachine(machineID string) bool { return s.playerNearMachine[machineID] }

func (s *sensorState) set(sensor, target string, on bool) {
	switch sensor {
	case protocol.SensorPickup:
		s.playerAtPickup = on
	case protocol.SensorDropoff:
		setFlag(s.customersAtDropoff, target, on)
	case protocol.SensorMachine:
		setFlag(s.playerNearMachine, target, on)
	}
}

// forget drops every signal mentioning holder (despawn).
func (s *sensorState) forget(holder string) {
	delete(s.customersAtDropoff, holder)
	delete(s.playerNearMachine, holder)
}

func setFlag(m map[string]bool, key string, on bool) {
	if on {
		m[key] = true
	} else {
		delete(m, key)
	}
}
