// Package schema validates annotation sidecars before they are written.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ocrlabel/internal/common"
)

//go:embed document.schema.json
var documentSchema []byte

const resource = "document.schema.json"

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, bytes.NewReader(documentSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile(resource)
})

// Source returns the embedded schema text.
func Source() []byte { return documentSchema }

// Validate checks data against the document schema. Failures wrap
// common.ErrValidation.
func Validate(data []byte) error {
	s, err := compiled()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return common.NewAppError("VALIDATION", "document is not valid JSON", fmt.Errorf("%w: %v", common.ErrValidation, err))
	}
	if err := s.Validate(v); err != nil {
		return common.NewAppError("VALIDATION", "document does not match schema", fmt.Errorf("%w: %v", common.ErrValidation, err))
	}
	return nil
}
