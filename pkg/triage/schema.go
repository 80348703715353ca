package triage

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/greyhatlabs/triage/internal/types"
)

// Schema returns a JSON Schema describing TriagedArtifact, generated by
// reflection per spec §6's "JSON schema available for validation"
// requirement, grounded on the teacher's jsonschema-go usage in its MCP
// tool-definition layer (there built by hand; here inferred, since a
// single root type is all this surface needs).
func Schema() (*jsonschema.Schema, error) {
	return jsonschema.For[types.TriagedArtifact]()
}
