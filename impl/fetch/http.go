package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/aceeric/imgpreload/impl/config"

	log "github.com/sirupsen/logrus"
)

// HTTP fetches http and https identifiers
type HTTP struct {
	sink    Sink
	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewHTTP returns an HTTP fetcher that puts what it fetches into 'sink'. If
// 'sink' is nil, the response body is read and discarded.
func NewHTTP(sink Sink) *HTTP {
	return &HTTP{
		sink:    sink,
		clients: make(map[string]*http.Client),
	}
}

func (h *HTTP) Schemes() []string {
	return []string{"http", "https"}
}

func (h *HTTP) Fetch(ctx context.Context, identifier string) error {
	u, err := url.Parse(identifier)
	if err != nil {
		return fmt.Errorf("unable to parse url %s: %w", identifier, err)
	}
	opts, err := config.ConfigFor(u.Host)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identifier, nil)
	if err != nil {
		return err
	}
	user, password, err := credentials(opts)
	if err != nil {
		return fmt.Errorf("unable to get credentials for %s: %w", u.Host, err)
	}
	if user != "" {
		req.SetBasicAuth(user, password)
	}
	resp, err := h.clientFor(u.Host, opts).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad http response fetching %s: %s", identifier, resp.Status)
	}
	n, err := store(h.sink, identifier, resp.Body)
	if err != nil {
		return err
	}
	log.Debugf("fetched %d bytes from %s", n, identifier)
	return nil
}

// clientFor returns the client for 'host', creating it on first use. Hosts without
// TLS configuration share the default client.
func (h *HTTP) clientFor(host string, opts config.HostOpts) *http.Client {
	if opts.TlsCfg == nil {
		return http.DefaultClient
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[host]; ok {
		return c
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = opts.TlsCfg
	c := &http.Client{Transport: transport}
	h.clients[host] = c
	return c
}
