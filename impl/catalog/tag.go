package catalog

// Tag is the scene and/or weight applied to every item in a batch that does not set
// its own.
type Tag struct {
	Scene  *string
	Weight *float64
}

// NoTag leaves items untagged
var NoTag = Tag{}

// Scene returns a tag that puts items in the passed scene
func Scene(scene string) Tag {
	return Tag{Scene: &scene}
}

// Weight returns a tag that gives items the passed weight
func Weight(weight float64) Tag {
	return Tag{Weight: &weight}
}

// SceneWeight returns a tag that sets both
func SceneWeight(scene string, weight float64) Tag {
	return Tag{Scene: &scene, Weight: &weight}
}

// Discard is an item dropped by Normalize, with its index in the input
type Discard struct {
	Index int
	Item  Item
	Err   error
}

// Normalize converts items to descriptors, filling in the tag's scene and weight where
// an item doesn't set them. Items without an identifier are returned in the discard
// list instead.
func Normalize(items []Item, tag Tag) ([]Descriptor, []Discard) {
	entries := make([]Descriptor, 0, len(items))
	var discarded []Discard
	for i, item := range items {
		if item == nil {
			discarded = append(discarded, Discard{Index: i, Err: ErrNoIdentifier})
			continue
		}
		d, err := item.descriptor()
		if err != nil {
			discarded = append(discarded, Discard{Index: i, Item: item, Err: err})
			continue
		}
		if d.Scene == nil && tag.Scene != nil {
			scene := *tag.Scene
			d.Scene = &scene
		}
		if d.Weight == nil && tag.Weight != nil {
			weight := *tag.Weight
			d.Weight = &weight
		}
		entries = append(entries, d)
	}
	return entries, discarded
}
