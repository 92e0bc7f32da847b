package subcmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aceeric/imgpreload/impl"
	"github.com/aceeric/imgpreload/impl/auth"
	"github.com/aceeric/imgpreload/impl/catalog"
	"github.com/aceeric/imgpreload/impl/config"
	"github.com/aceeric/imgpreload/impl/globals"
	"github.com/aceeric/imgpreload/impl/metrics"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const startupBanner = `----------------------------------------------------------------------
Imgpreload: deduplicating, scene and weight aware resource preloader
Version: %s, build date: %s
Started: %s (port %d)
Running as (uid:gid) %d:%d
Process id: %d
Catalog: %s (watch: %t)
Command line: %v
----------------------------------------------------------------------
`

// listener will be initialized with the Echo listener once the Echo server
// is started.
var listener net.Listener

// Serve runs the preload API server, blocking until stopped with CTRL-C
// or via the command REST API.
func Serve(buildVer string, buildDtm string) error {
	fetchCtx, cancelFetches := context.WithCancel(context.Background())
	defer cancelFetches()
	defer auth.Shutdown()
	reg, _, err := newRegistry(fetchCtx)
	if err != nil {
		return fmt.Errorf("error initializing the cache: %s", err)
	}
	p, err := newPreloader(reg)
	if err != nil {
		return fmt.Errorf("error loading the catalog: %s", err)
	}
	defer p.Close()

	shutdownCh := make(chan bool)
	preloadServer := impl.NewPreloadServer(p, shutdownCh)

	// Echo router
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(globals.GetEchoLoggingFunc())
	preloadServer.RegisterHandlers(e)

	metrics.InitMetrics(config.GetMetrics())

	watchCtx, stopWatch := context.WithCancel(context.Background())
	var watchWg sync.WaitGroup
	if config.GetWatch() && config.GetCatalogFile() != "" {
		watchWg.Add(1)
		go func() {
			defer watchWg.Done()
			err := catalog.Watch(watchCtx, config.GetCatalogFile(), func(groups []catalog.Group) {
				addGroups(p, groups)
				log.Infof("added %d new catalog item(s) from %s", len(catalog.Identifiers(groups)), config.GetCatalogFile())
			})
			if err != nil {
				log.Errorf("catalog watcher failed: %s", err)
			}
		}()
	}

	fmt.Fprintf(os.Stderr, startupBanner, buildVer, buildDtm, time.Unix(0, time.Now().UnixNano()), config.GetPort(),
		os.Getuid(), os.Getgid(), os.Getpid(), catalogMsg(), config.GetWatch(), strings.Join(os.Args, " "))

	// start the API server
	go func() {
		addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(int(config.GetPort())))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server. error:", err)
		}
	}()
	err = waitForEchoListener(e)
	if err != nil {
		stopWatch()
		return errors.New("timed out waiting for Echo listener")
	}
	listener = e.Listener
	log.Info("server is running")

	<-shutdownCh
	log.Infof("received stop command - stopping")
	e.Server.Shutdown(context.Background())
	stopWatch()
	watchWg.Wait()
	cancelFetches()
	log.Infof("waiting for in-flight fetches")
	reg.Wait()
	log.Infof("stopped")
	return nil
}

// catalogMsg formats the catalog file for the startup banner
func catalogMsg() string {
	if config.GetCatalogFile() == "" {
		return "none"
	}
	return config.GetCatalogFile()
}

// waitForEchoListener waits for the Listener in the Echo server to be initialized. This
// is only used in unit testing so that the unit tests can start the server on ":0" and let
// the http package assign a random port number. Supports unit testing.
func waitForEchoListener(e *echo.Echo) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if e.Listener != nil {
				return nil
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// GetListener supports unit testing.
func GetListener() net.Listener {
	return listener
}

// InitListener supports unit testing.
func InitListener() {
	listener = nil
}
