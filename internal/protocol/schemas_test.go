package protocol_test

import (
	"testing"

	"washcycle.game/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	s, err := protocol.LoadSchemas()
	if err != nil {
		t.Fatalf("load schemas: %v", err)
	}

	valid := map[string]string{
		protocol.TypeHello: `{"type":"HELLO","protocol_version":"1.0","client_name":"godot-client","max_queue":16}`,
		protocol.TypeInput: `{
		  "type":"INPUT","protocol_version":"1.0","tick":12,
		  "inputs":[
		    {"id":"I1","type":"PROXIMITY","sensor":"PICKUP","on":true},
		    {"id":"I2","type":"PROXIMITY","sensor":"DROPOFF","target":"C000001","on":true},
		    {"id":"I3","type":"INTERACT","target":"M000001"},
		    {"id":"I4","type":"ARRIVED","target":"C000001"},
		    {"id":"I5","type":"SPAWN_CUSTOMER","items":["suit","pen"]}
		  ]
		}`,
		protocol.TypeInventoryReq: `{"type":"INVENTORY_REQ","protocol_version":"1.0","req_id":"R1","holder":"PLAYER"}`,
		protocol.TypeEvents: `{
		  "type":"EVENTS","protocol_version":"1.0","tick":3,
		  "events":[{"t":3,"type":"READY_LIGHT","on":true},{"t":3,"type":"INVALID_RANGE_TO_OBJECT","target":"M000001"}]
		}`,
		protocol.TypeInventory: `{
		  "type":"INVENTORY","protocol_version":"1.0","req_id":"R1","tick":3,
		  "inventory":{"holder":"PLAYER","kind":"PLAYER","max_item_count":20,
		    "items":[{"name":"suit","owner":"01HZX3Y0000000000000000000","state":"UNPROCESSED"}]}
		}`,
	}
	for typ, raw := range valid {
		if err := s.Validate(typ, []byte(raw)); err != nil {
			t.Fatalf("%s: expected valid, got %v", typ, err)
		}
	}
}

func TestSchemas_RejectMalformedInputs(t *testing.T) {
	s, err := protocol.LoadSchemas()
	if err != nil {
		t.Fatalf("load schemas: %v", err)
	}
	bad := []string{
		`{"type":"INPUT","protocol_version":"1.0"}`,
		`{"type":"INPUT","protocol_version":"1.0","inputs":[{"type":"TELEPORT"}]}`,
		`{"type":"INPUT","protocol_version":"1.0","inputs":[{"type":"PROXIMITY","on":true}]}`,
		`{"type":"INPUT","protocol_version":"1.0","inputs":[{"type":"INTERACT"}]}`,
	}
	for _, raw := range bad {
		if err := s.Validate(protocol.TypeInput, []byte(raw)); err == nil {
			t.Fatalf("expected rejection for %s", raw)
		}
	}
	if err := s.Validate("NOPE", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unknown message type")
	}
}

func TestSchemas_WelcomeStructValidates(t *testing.T) {
	s, err := protocol.LoadSchemas()
	if err != nil {
		t.Fatalf("load schemas: %v", err)
	}
	msg := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S000001",
		WorldID:         "shop_1",
		WorldParams: protocol.WorldParams{
			TickRateHz:        20,
			PlayerMaxItems:    20,
			CustomerMaxItems:  5,
			MachineMaxItems:   5,
			MachineWorkMillis: 5000,
			Seed:              1337,
		},
		Player: protocol.InventoryObs{Holder: "PLAYER", Kind: "PLAYER", MaxItemCount: 20, Items: []protocol.ItemObs{}},
	}
	if err := s.ValidateValue(protocol.TypeWelcome, msg); err != nil {
		t.Fatalf("welcome: %v", err)
	}
}
