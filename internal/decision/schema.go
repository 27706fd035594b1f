package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// EnvelopeKey wraps the selection array for services that need an object root.
const EnvelopeKey = "predictions"

// SchemaName is the structured-output name sent to the reasoning service.
const SchemaName = "coin_predictions"

// SelectionSchema is the strict output contract: an array of
// {token, prediction}, both required, prediction in {1, -1}, nothing else.
const SelectionSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "token": {"type": "string"},
      "prediction": {"type": "integer", "enum": [1, -1]}
    },
    "required": ["token", "prediction"],
    "additionalProperties": false
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("selection.json", strings.NewReader(SelectionSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("selection.json")
})

// SchemaJSON returns the output schema for the provider payload.
func SchemaJSON() json.RawMessage {
	return json.RawMessage(SelectionSchema)
}

func validateSchema(arr string) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile selection schema: %w", err)
	}
	var doc any
	dec := json.NewDecoder(strings.NewReader(arr))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}
