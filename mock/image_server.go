package mock

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var re = regexp.MustCompile(`https://|http://`)

// MockParams supports different configurations for the mock image server
type MockParams struct {
	Auth    AuthType
	Scheme  SchemeType
	DelayMs int
	// Gate, if not nil, blocks every image response until it is closed
	Gate chan struct{}
}

// SchemeType specifies http or https
type SchemeType string

const (
	HTTP  SchemeType = "http"
	HTTPS SchemeType = "https"
)

type AuthType string

const (
	BASIC AuthType = "basic auth"
	NONE  AuthType = "no auth"
)

// User and Password are the credentials the server accepts when Auth is BASIC
const (
	User     = "frobozz"
	Password = "zorkmid"
)

// MockServer wraps the test server with a per-path hit counter
type MockServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

// NewMockParams returns a 'MockParams' instance from the passed args.
func NewMockParams(auth AuthType, scheme SchemeType) MockParams {
	return MockParams{
		Auth:   auth,
		Scheme: scheme,
	}
}

// ImageBytes returns the bytes the server serves for the passed image name
func ImageBytes(name string) []byte {
	sum := sha256.Sum256([]byte(name))
	return []byte(fmt.Sprintf("\x89PNG\r\n\x1a\n%s:%x", name, sum))
}

// Server runs the mock image server. It returns the server and the server url without
// the scheme, e.g. "127.0.0.1:34567".
func Server(params MockParams) (*MockServer, string) {
	ms := &MockServer{hits: make(map[string]int)}
	ms.Server = httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.mu.Lock()
		ms.hits[r.URL.Path]++
		ms.mu.Unlock()
		if params.Auth == BASIC {
			if user, pass, ok := r.BasicAuth(); !ok || user != User || pass != Password {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		// delayMs supports simulating slow links or large images
		if params.DelayMs != 0 {
			time.Sleep(time.Duration(params.DelayMs) * time.Millisecond)
		}
		name, found := strings.CutPrefix(r.URL.Path, "/img/")
		if !found || name == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if params.Gate != nil {
			select {
			case <-params.Gate:
			case <-r.Context().Done():
				return
			}
		}
		b := ImageBytes(name)
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		w.Header().Set("Content-Type", "image/png")
		w.Write(b)
	}))
	if params.Scheme == HTTPS {
		ms.StartTLS()
	} else {
		ms.Start()
	}
	return ms, re.ReplaceAllString(ms.URL, "")
}

// Hits returns the number of requests received for the passed path, e.g. "/img/a.png"
func (ms *MockServer) Hits(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.hits[path]
}

// TotalHits returns the number of requests received for all paths
func (ms *MockServer) TotalHits() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	total := 0
	for _, n := range ms.hits {
		total += n
	}
	return total
}
