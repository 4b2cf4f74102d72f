// Package schema generates JSON schemas for tool parameters from Go types.
package schema

import (
	"encoding/json"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	cache   = make(map[reflect.Type]*jsonschema.Schema)
	cacheMu sync.RWMutex
)

// New returns the parameters schema for the given request type.
// Schemas are cached per type.
func New(t reflect.Type) *jsonschema.Schema {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if s, ok := cache[t]; ok {
		return s
	}

	s := JSONSchema(t)
	cache[t] = s
	return s
}

// JSONSchema returns the json schema of the given type, inlined without
// $ref indirection so it can be sent to tool-calling APIs as-is.
func JSONSchema(t reflect.Type) *jsonschema.Schema {
	// VS Code does not support the jsonschema version 2020-12
	jsonschema.Version = "http://json-schema.org/draft-07/schema#"

	r := new(jsonschema.Reflector)
	r.ExpandedStruct = true
	r.DoNotReference = true
	r.AllowAdditionalProperties = true

	return r.ReflectFromType(t)
}

// FromAny creates a json schema from a raw value, typically a
// map[string]any received off the wire.
func FromAny(t any) (*jsonschema.Schema, error) {
	js, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	schema := &jsonschema.Schema{}
	err = json.Unmarshal(js, schema)
	if err != nil {
		return nil, err
	}
	return schema, nil
}
