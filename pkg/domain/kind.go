package domain

import (
	"encoding/json"
	"strings"
	"unicode/utf16"
)

// KindOrigin tells where a node kind came from.
type KindOrigin string

const (
	// KindCatalog is an explicit kind declared by a catalog template.
	KindCatalog KindOrigin = "catalog"
	// KindLabel is the sanitized display label, used when the template declares no kind.
	KindLabel KindOrigin = "label"
)

// PlaceholderKind is the kind canvases assign to nodes without a real type.
// It is treated as "no explicit kind".
const PlaceholderKind = "default"

// Kind is the execution type of a node, tagged with its origin.
type Kind struct {
	Name   string     `json:"name" yaml:"name"`
	Origin KindOrigin `json:"origin" yaml:"origin"`
}

// CatalogKind returns an explicit kind.
func CatalogKind(name string) Kind {
	return Kind{Name: name, Origin: KindCatalog}
}

// LabelKind derives a kind from a display label.
func LabelKind(label string) Kind {
	return Kind{Name: SanitizeLabel(label), Origin: KindLabel}
}

// KindFor picks the kind a node instantiated from t gets.
func KindFor(t NodeTemplate) Kind {
	k := strings.TrimSpace(t.Kind)
	if k == "" || k == PlaceholderKind {
		return LabelKind(t.Label)
	}
	return CatalogKind(k)
}

// IsExplicit reports whether the kind was declared by the catalog.
func (k Kind) IsExplicit() bool {
	return k.Origin == KindCatalog
}

func (k Kind) String() string {
	return k.Name
}

// UnmarshalJSON accepts both the tagged object and a bare string.
// A bare string is taken as an explicit kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*k = CatalogKind(name)
		return nil
	}
	type plain Kind
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*k = Kind(p)
	return nil
}

// SanitizeLabel replaces everything outside [A-Za-z0-9] with underscores, yielding a safe
// identifier for the downstream service. A rune counts as many underscores as its
// UTF-16 encoding has code units, so "🔵 LSTM Cell" becomes "___LSTM_Cell" as the
// service has always received it.
func SanitizeLabel(label string) string {
	var sb strings.Builder
	sb.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteString(strings.Repeat("_", max(utf16.RuneLen(r), 1)))
		}
	}
	return sb.String()
}
