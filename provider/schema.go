package provider

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

// schemaFor reflects the JSON schema of out's type into a plain map, the shape
// both vendor adapters consume (Gemini as a response schema, OpenAI inlined
// into the prompt).
func schemaFor(out any) (map[string]any, error) {
	t := reflect.TypeOf(out)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r := jsonschema.Reflector{
		DoNotReference: true,
		// ExpandedStruct looks the root type up by name, so it cannot
		// handle anonymous structs.
		ExpandedStruct: t != nil && t.Name() != "",
	}
	s := r.Reflect(out)
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m, nil
}
