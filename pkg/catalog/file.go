package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/modelgraph/pkg/domain"
	"gopkg.in/yaml.v3"
)

// File reads templates from a YAML or JSON document on disk.
type File struct {
	Path string
}

// List reads and decodes the file on every call; wrap it in Cached.
func (f File) List(ctx context.Context) ([]domain.NodeTemplate, error) {
	templates, err := LoadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	return templates, nil
}

// LoadFile reads a catalog file. The format is picked from the extension
// (.json, otherwise YAML).
func LoadFile(path string) ([]domain.NodeTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var raw any
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}
	return Decode(raw)
}
