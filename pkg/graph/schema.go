package graph

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the graph file schema.
const SchemaID = "https://github.com/aretw0/modelgraph/schemas/graph-file.json"

// DocumentSchema returns the JSON Schema of graph files, for editor completion and
// validation outside this tool.
func DocumentSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
	}
	s := r.Reflect(&Document{})
	s.ID = SchemaID
	s.Title = "modelgraph graph file"
	return s
}

// MarshalDocumentSchema renders DocumentSchema as indented JSON.
func MarshalDocumentSchema() ([]byte, error) {
	return json.MarshalIndent(DocumentSchema(), "", "  ")
}
