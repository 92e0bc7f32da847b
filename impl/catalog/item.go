package catalog

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrNoIdentifier is the reason an item is discarded by Normalize
var ErrNoIdentifier = errors.New("catalog: item has no identifier")

// Item is a catalog item: an ID or a Descriptor. Items decoded from yaml or json that
// are neither are represented by an item that always fails normalization.
type Item interface {
	descriptor() (Descriptor, error)
}

// ID is an item that is just an identifier
type ID string

func (id ID) descriptor() (Descriptor, error) {
	if id == "" {
		return Descriptor{}, ErrNoIdentifier
	}
	return Descriptor{Identifier: string(id)}, nil
}

// Descriptor is an item with an identifier and an optional weight and scene. It is also
// the normalized form of every item in a catalog.
type Descriptor struct {
	Identifier string   `yaml:"identifier" json:"identifier"`
	Weight     *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	Scene      *string  `yaml:"scene,omitempty" json:"scene,omitempty"`
}

func (d Descriptor) descriptor() (Descriptor, error) {
	if d.Identifier == "" {
		return Descriptor{}, ErrNoIdentifier
	}
	return d, nil
}

// String formats the descriptor like 'id (scene=menu weight=5)'
func (d Descriptor) String() string {
	scene, weight := "-", "-"
	if d.Scene != nil {
		scene = *d.Scene
	}
	if d.Weight != nil {
		weight = fmt.Sprintf("%g", *d.Weight)
	}
	return fmt.Sprintf("%s (scene=%s weight=%s)", d.Identifier, scene, weight)
}

// malformed is an item decoded from input that was neither a string nor an object
type malformed struct {
	kind string
}

func (m malformed) descriptor() (Descriptor, error) {
	return Descriptor{}, fmt.Errorf("%w: got %s", ErrNoIdentifier, m.kind)
}

// W returns a pointer to a weight for use in a Descriptor literal
func W(w float64) *float64 {
	return &w
}

// S returns a pointer to a scene for use in a Descriptor literal
func S(s string) *string {
	return &s
}

// Items is a list of items that decodes from yaml or json where each element is a
// string or an object with an 'identifier' field.
type Items []Item

func (items *Items) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: items must be a list", value.Line)
	}
	decoded := make(Items, 0, len(value.Content))
	for _, n := range value.Content {
		switch n.Kind {
		case yaml.ScalarNode:
			if n.ShortTag() != "!!str" {
				decoded = append(decoded, malformed{kind: fmt.Sprintf("%s %q at line %d", n.ShortTag(), n.Value, n.Line)})
				continue
			}
			decoded = append(decoded, ID(n.Value))
		case yaml.MappingNode:
			var d Descriptor
			if err := n.Decode(&d); err != nil {
				return err
			}
			decoded = append(decoded, d)
		default:
			decoded = append(decoded, malformed{kind: fmt.Sprintf("yaml node kind %d at line %d", n.Kind, n.Line)})
		}
	}
	*items = decoded
	return nil
}

func (items *Items) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	decoded := make(Items, 0, len(raw))
	for _, r := range raw {
		var id string
		if err := json.Unmarshal(r, &id); err == nil {
			decoded = append(decoded, ID(id))
			continue
		}
		var d Descriptor
		if err := json.Unmarshal(r, &d); err == nil {
			decoded = append(decoded, d)
			continue
		}
		decoded = append(decoded, malformed{kind: string(r)})
	}
	*items = decoded
	return nil
}
