package subcmd

import (
	"fmt"
	"io"

	"github.com/aceeric/imgpreload/impl/catalog"
	"github.com/aceeric/imgpreload/impl/config"
)

// List writes the entries of the configured catalog that the configured selector picks,
// one per line, followed by any items that would be discarded.
func List(w io.Writer) error {
	if config.GetCatalogFile() == "" {
		return fmt.Errorf("no catalog file configured")
	}
	groups, err := catalog.ParseFile(config.GetCatalogFile())
	if err != nil {
		return err
	}
	sel := selector()
	selected := 0
	var discarded []catalog.Discard
	for _, g := range groups {
		entries, d := catalog.Normalize(g.Items, g.Tag())
		discarded = append(discarded, d...)
		for _, e := range entries {
			if sel.Matches(e) {
				fmt.Fprintln(w, e)
				selected++
			}
		}
	}
	for _, d := range discarded {
		fmt.Fprintf(w, "discarded: %s\n", d.Err)
	}
	fmt.Fprintf(w, "%d resource(s) selected by %s\n", selected, sel)
	return nil
}
