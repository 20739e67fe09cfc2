package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://washcycle.game/schemas/"

// Schemas holds the compiled wire schemas, keyed by message type.
type Schemas struct {
	byType map[string]*jsonschema.Schema
}

var schemaFiles = map[string]string{
	TypeHello:        "hello.schema.json",
	TypeWelcome:      "welcome.schema.json",
	TypeInput:        "input.schema.json",
	TypeEvents:       "events.schema.json",
	TypeInventoryReq: "inventory_req.schema.json",
	TypeInventory:    "inventory.schema.json",
}

// LoadSchemas compiles every embedded schema.
func LoadSchemas() (*Schemas, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}

	s := &Schemas{byType: map[string]*jsonschema.Schema{}}
	for typ, name := range schemaFiles {
		sch, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		s.byType[typ] = sch
	}
	return s, nil
}

// Validate checks raw JSON against the schema registered for msgType.
func (s *Schemas) Validate(msgType string, raw []byte) error {
	sch := s.byType[msgType]
	if sch == nil {
		return fmt.Errorf("no schema for message type %q", msgType)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}

// ValidateValue marshals v and validates it; used for outbound messages in tests.
func (s *Schemas) ValidateValue(msgType string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Validate(msgType, b)
}
