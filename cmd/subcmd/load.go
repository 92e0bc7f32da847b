package subcmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/aceeric/imgpreload/impl/auth"
	"github.com/aceeric/imgpreload/impl/config"
	"github.com/aceeric/imgpreload/impl/preload"

	"github.com/labstack/gommon/bytes"
	log "github.com/sirupsen/logrus"
)

// Load loads the configured catalog, or the part of it picked by the configured scene
// or weight, and returns when every selected resource is in the cache. If a wait timeout
// is configured and the load doesn't finish in time, in-flight fetches are cancelled
// and an error is returned. CTRL-C does the same.
func Load() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer auth.Shutdown()
	fetchCtx, cancelFetches := context.WithCancel(ctx)
	defer cancelFetches()

	reg, store, err := newRegistry(fetchCtx)
	if err != nil {
		return err
	}
	p, err := newPreloader(reg)
	if err != nil {
		return err
	}
	defer p.Close()
	if config.GetCatalogFile() == "" {
		log.Warn("no catalog file configured, nothing to load")
	}

	start := time.Now()
	sel := selector()
	l := p.Load(sel, preload.WithProgress(func(completed, total int) {
		log.Infof("loaded %d of %d", completed, total)
	}))
	if wt := config.GetWaitTimeout(); wt > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(wt)*time.Millisecond)
		defer cancel()
	}
	completed, err := l.Wait(ctx)
	if err != nil {
		cancelFetches()
		reg.Wait()
		done, _ := l.Completed()
		return fmt.Errorf("load (%s) did not complete, %d of %d resource(s) loaded: %w", sel, done, l.Total(), err)
	}
	reg.Wait()
	fmt.Printf("loaded %d resource(s) (%s) into %s in %s, %d blob(s) in the cache (%s)\n",
		completed, sel, config.GetCachePath(), time.Since(start).Round(time.Millisecond), store.Len(),
		bytes.Format(store.Bytes()))
	return nil
}
