package engine

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const registerSchemaJSON = `{
	"type": "object",
	"required": ["name", "aiFunction"],
	"properties": {
		"name": {"type": "string", "minLength": 1, "maxLength": 20},
		"aiFunction": {"type": "string", "minLength": 1, "maxLength": 10000}
	}
}`

const submitSchemaJSON = `{
	"type": "object",
	"required": ["snakeId", "aiFunction"],
	"properties": {
		"snakeId": {"type": "string", "minLength": 1},
		"aiFunction": {"type": "string", "minLength": 1, "maxLength": 10000}
	}
}`

const configSchemaJSON = `{
	"type": "object",
	"properties": {
		"tickRateMs": {"type": "integer", "minimum": 20, "maximum": 1000},
		"arenaRadius": {"type": "number", "minimum": 500, "maximum": 10000},
		"respawnOnDeath": {"type": "boolean"},
		"respawnDelayMs": {"type": "integer", "minimum": 0, "maximum": 30000},
		"snakeSpeed": {"type": "number", "minimum": 1, "maximum": 20},
		"maxTurnRate": {"type": "number", "minimum": 0.01, "maximum": 0.5}
	},
	"additionalProperties": false
}`

// schemaSet compiles the three request-body schemas named in spec.md
// §6 once at startup, so every request validates against a prebuilt
// *jsonschema.Schema instead of recompiling per call.
type schemaSet struct {
	register *jsonschema.Schema
	submit   *jsonschema.Schema
	config   *jsonschema.Schema
}

func newSchemaSet() (*schemaSet, error) {
	compile := func(name, schema string) (*jsonschema.Schema, error) {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name, strings.NewReader(schema)); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", name, err)
		}
		s, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		return s, nil
	}

	reg, err := compile("register.json", registerSchemaJSON)
	if err != nil {
		return nil, err
	}
	sub, err := compile("submit.json", submitSchemaJSON)
	if err != nil {
		return nil, err
	}
	cfg, err := compile("config.json", configSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &schemaSet{register: reg, submit: sub, config: cfg}, nil
}
