// Package catalog has the types a caller uses to describe resources to the preloader:
// the catalog items themselves, the scene/weight tag applied to a batch of items, and the
// selectors that pick a subset of a catalog to load. It also parses yaml catalog files
// and can watch one for new items.
//
// An item is either a bare identifier:
//
//	catalog.ID("https://cdn.example.com/logo.png")
//
// or a descriptor that may carry its own weight and/or scene:
//
//	catalog.Descriptor{Identifier: "https://cdn.example.com/bg.png", Weight: catalog.W(10)}
//
// A value set on a descriptor takes precedence over the same value in the batch tag.
package catalog
