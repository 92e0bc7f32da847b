package catalog

import (
	"errors"
	"fmt"
	"strconv"
)

type selectorKind int

const (
	selectAll selectorKind = iota
	selectWeight
	selectScene
)

// Selector picks a subset of a catalog
type Selector struct {
	kind   selectorKind
	weight float64
	scene  string
}

// All selects the entire catalog
func All() Selector {
	return Selector{kind: selectAll}
}

// ByWeight selects resources without a weight or with a weight of at least 'w'
func ByWeight(w float64) Selector {
	return Selector{kind: selectWeight, weight: w}
}

// ByScene selects resources without a scene or in scene 's'
func ByScene(s string) Selector {
	return Selector{kind: selectScene, scene: s}
}

// Matches reports whether the selector picks 'd'
func (s Selector) Matches(d Descriptor) bool {
	switch s.kind {
	case selectWeight:
		return d.Weight == nil || *d.Weight >= s.weight
	case selectScene:
		return d.Scene == nil || *d.Scene == s.scene
	}
	return true
}

func (s Selector) String() string {
	switch s.kind {
	case selectWeight:
		return fmt.Sprintf("weight>=%g", s.weight)
	case selectScene:
		return fmt.Sprintf("scene=%s", s.scene)
	}
	return "all"
}

// ParseSelector returns a scene selector if 'scene' is non-empty, a weight selector if
// 'weight' is non-empty, and All if both are empty. Passing both is an error.
func ParseSelector(scene, weight string) (Selector, error) {
	switch {
	case scene != "" && weight != "":
		return Selector{}, errors.New("specify a scene or a weight, not both")
	case scene != "":
		return ByScene(scene), nil
	case weight != "":
		w, err := strconv.ParseFloat(weight, 64)
		if err != nil {
			return Selector{}, fmt.Errorf("invalid weight %q: %w", weight, err)
		}
		return ByWeight(w), nil
	}
	return All(), nil
}
