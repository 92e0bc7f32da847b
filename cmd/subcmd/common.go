package subcmd

import (
	"context"
	"time"

	"github.com/aceeric/imgpreload/impl/blobstore"
	"github.com/aceeric/imgpreload/impl/catalog"
	"github.com/aceeric/imgpreload/impl/config"
	"github.com/aceeric/imgpreload/impl/fetch"
	"github.com/aceeric/imgpreload/impl/preload"
	"github.com/aceeric/imgpreload/impl/registry"

	log "github.com/sirupsen/logrus"
)

// newRegistry builds the fetch stack from configuration: a blob store under the cache path,
// the http(s), file, and oci fetchers writing into it, a concurrency limit, and a
// registry that dedups fetches with the configured pull timeout. The registry becomes the
// process default. Fetches run under 'ctx'.
func newRegistry(ctx context.Context) (*registry.Registry, *blobstore.Store, error) {
	store, err := blobstore.New(config.GetCachePath())
	if err != nil {
		return nil, nil, err
	}
	mux := fetch.NewMux(fetch.NewHTTP(store), fetch.NewFile(store), fetch.NewOCI(store))
	reg := registry.New(fetch.Limit(mux, config.GetConcurrent()),
		registry.WithContext(ctx),
		registry.WithTimeout(time.Duration(config.GetPullTimeout())*time.Millisecond))
	registry.SetDefault(reg)
	return reg, store, nil
}

// newPreloader returns a Preloader over the passed registry holding the configured
// catalog file, if there is one.
func newPreloader(reg preload.Registry) (*preload.Preloader, error) {
	p := preload.New(reg, nil, catalog.NoTag)
	if config.GetCatalogFile() == "" {
		return p, nil
	}
	groups, err := catalog.ParseFile(config.GetCatalogFile())
	if err != nil {
		p.Close()
		return nil, err
	}
	addGroups(p, groups)
	log.Infof("loaded catalog %s: %d resource(s)", config.GetCatalogFile(), len(p.Resources()))
	return p, nil
}

func addGroups(p *preload.Preloader, groups []catalog.Group) {
	for _, g := range groups {
		p.Add(g.Items, g.Tag())
	}
}

// selector returns the selector configured for the load and list commands
func selector() catalog.Selector {
	lc := config.GetLoadConfig()
	switch {
	case lc.ByWeight:
		return catalog.ByWeight(lc.Weight)
	case lc.Scene != "":
		return catalog.ByScene(lc.Scene)
	}
	return catalog.All()
}
