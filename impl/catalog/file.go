package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Group is a list of items that share a scene and/or weight in a catalog file.
type Group struct {
	Scene  *string  `yaml:"scene,omitempty" json:"scene,omitempty"`
	Weight *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	Items  Items    `yaml:"items" json:"items"`
}

// Tag returns the tag to add the group's items with
func (g Group) Tag() Tag {
	return Tag{Scene: g.Scene, Weight: g.Weight}
}

// Parse parses a yaml catalog, which is a list of groups.
func Parse(b []byte) ([]Group, error) {
	var groups []Group
	if err := yaml.Unmarshal(b, &groups); err != nil {
		return nil, fmt.Errorf("error parsing catalog: %w", err)
	}
	return groups, nil
}

// ParseFile reads and parses the catalog in the passed file
func ParseFile(path string) ([]Group, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	groups, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return groups, nil
}

// Identifiers returns the identifiers of every valid item in the groups.
func Identifiers(groups []Group) []string {
	var ids []string
	for _, g := range groups {
		for _, item := range g.Items {
			if item == nil {
				continue
			}
			if d, err := item.descriptor(); err == nil {
				ids = append(ids, d.Identifier)
			}
		}
	}
	return ids
}
