package catalog

import (
	"fmt"

	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode converts a loosely typed document (as produced by encoding/json or yaml.v3)
// into templates. It accepts either a bare list or an object with a "nodes" list.
func Decode(raw any) ([]domain.NodeTemplate, error) {
	if doc, ok := raw.(map[string]any); ok {
		nodes, found := doc["nodes"]
		if !found {
			return nil, fmt.Errorf("catalog document has no \"nodes\" list")
		}
		raw = nodes
	}
	if _, ok := raw.([]any); !ok {
		return nil, fmt.Errorf("catalog must be a list, got %T", raw)
	}

	var templates []domain.NodeTemplate
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &templates,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	for i, t := range templates {
		if err := validate.Struct(t); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}
	if templates == nil {
		templates = []domain.NodeTemplate{}
	}
	return templates, nil
}
