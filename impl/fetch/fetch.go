package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aceeric/imgpreload/impl/auth"
	"github.com/aceeric/imgpreload/impl/config"
	"github.com/aceeric/imgpreload/impl/metrics"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/semaphore"
)

// ErrUnsupportedScheme is returned by a Mux for an identifier whose scheme has no fetcher
var ErrUnsupportedScheme = errors.New("fetch: unsupported scheme")

// Fetcher fetches the resource named by an identifier
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) error
}

// Func adapts a plain function to the Fetcher interface
type Func func(ctx context.Context, identifier string) error

func (f Func) Fetch(ctx context.Context, identifier string) error {
	return f(ctx, identifier)
}

// Sink is where fetchers put what they fetch. The blob store implements it.
type Sink interface {
	Put(identifier string, r io.Reader) (digest.Digest, int64, error)
	Stage() string
	Commit(identifier string, staged string) (digest.Digest, int64, error)
}

// SchemeFetcher is a Fetcher that declares the identifier schemes it handles
type SchemeFetcher interface {
	Fetcher
	Schemes() []string
}

// Mux dispatches each identifier to the fetcher registered for its scheme
type Mux struct {
	fetchers map[string]Fetcher
}

// NewMux returns a Mux handling the schemes of all the passed fetchers
func NewMux(fetchers ...SchemeFetcher) *Mux {
	m := &Mux{fetchers: make(map[string]Fetcher)}
	for _, f := range fetchers {
		for _, scheme := range f.Schemes() {
			m.Handle(scheme, f)
		}
	}
	return m
}

// Handle registers 'f' for 'scheme', replacing any fetcher already registered for it
func (m *Mux) Handle(scheme string, f Fetcher) {
	m.fetchers[strings.ToLower(scheme)] = f
}

func (m *Mux) Fetch(ctx context.Context, identifier string) error {
	scheme := Scheme(identifier)
	f, ok := m.fetchers[scheme]
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrUnsupportedScheme, scheme, identifier)
	}
	metrics.IncFetchesByScheme(scheme)
	return f.Fetch(ctx, identifier)
}

// Scheme returns the lower-cased scheme of an identifier. An identifier without one
// is a file path.
func Scheme(identifier string) string {
	if scheme, _, found := strings.Cut(identifier, "://"); found && scheme != "" {
		return strings.ToLower(scheme)
	}
	return "file"
}

type limited struct {
	sem *semaphore.Weighted
	f   Fetcher
}

// Limit wraps 'f' so that no more than 'n' fetches run at once. If 'n' is zero or
// less then 'f' is returned as is.
func Limit(f Fetcher, n int64) Fetcher {
	if n <= 0 {
		return f
	}
	return &limited{sem: semaphore.NewWeighted(n), f: f}
}

func (l *limited) Fetch(ctx context.Context, identifier string) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return l.f.Fetch(ctx, identifier)
}

// store puts 'r' in the sink, or reads and discards it if there is no sink. It returns
// the number of bytes read.
func store(sink Sink, identifier string, r io.Reader) (int64, error) {
	var n int64
	var err error
	if sink == nil {
		n, err = io.Copy(io.Discard, r)
	} else {
		_, n, err = sink.Put(identifier, r)
	}
	if err == nil {
		metrics.AddBytesFetched(float64(n))
	}
	return n, err
}

// credentials returns the basic auth user and password for a host: from the host's
// token provider if it has one, else as configured.
func credentials(opts config.HostOpts) (string, string, error) {
	if opts.Provider == "" {
		return opts.Username, opts.Password, nil
	}
	return auth.Credentials(opts.Provider, opts.ProviderOpts, opts.Expiry)
}
