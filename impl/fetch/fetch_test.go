package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aceeric/imgpreload/impl/blobstore"
	"github.com/aceeric/imgpreload/impl/config"
	"github.com/aceeric/imgpreload/mock"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
)

func newStore(t *testing.T) (*blobstore.Store, string) {
	d, err := os.MkdirTemp("", "")
	if err != nil {
		t.FailNow()
	}
	s, err := blobstore.New(d)
	if err != nil {
		t.FailNow()
	}
	return s, d
}

func readStored(t *testing.T, s *blobstore.Store, identifier string) []byte {
	f, err := s.Open(identifier)
	if err != nil {
		t.FailNow()
	}
	defer f.Close()
	b, _ := io.ReadAll(f)
	return b
}

func TestHTTP(t *testing.T) {
	config.Set(config.Configuration{})
	server, url := mock.Server(mock.NewMockParams(mock.NONE, mock.HTTP))
	defer server.Close()
	s, d := newStore(t)
	defer os.RemoveAll(d)
	id := "http://" + url + "/img/logo.png"
	if err := NewHTTP(s).Fetch(context.Background(), id); err != nil {
		t.FailNow()
	}
	if !bytes.Equal(readStored(t, s, id), mock.ImageBytes("logo.png")) {
		t.Fail()
	}
}

func TestHTTPNotFound(t *testing.T) {
	config.Set(config.Configuration{})
	server, url := mock.Server(mock.NewMockParams(mock.NONE, mock.HTTP))
	defer server.Close()
	if err := NewHTTP(nil).Fetch(context.Background(), "http://"+url+"/nothing"); err == nil {
		t.Fail()
	}
}

// Basic auth and TLS settings for the host come from the configuration
func TestHTTPSWithAuth(t *testing.T) {
	server, url := mock.Server(mock.NewMockParams(mock.BASIC, mock.HTTPS))
	defer server.Close()
	cfg := fmt.Sprintf(`
hosts:
  - name: %s
    auth:
      user: %s
      password: %s
    tls:
      insecureSkipVerify: true
`, url, mock.User, mock.Password)
	if err := config.SetConfigFromStr([]byte(cfg)); err != nil {
		t.FailNow()
	}
	defer config.Set(config.Configuration{})
	if err := NewHTTP(nil).Fetch(context.Background(), "https://"+url+"/img/a.png"); err != nil {
		t.Errorf("fetch failed: %s", err)
	}
	config.Set(config.Configuration{})
	if err := NewHTTP(nil).Fetch(context.Background(), "https://"+url+"/img/a.png"); err == nil {
		t.Fail()
	}
}

// A host whose TLS configuration can't be loaded is not fetched from at all
func TestHTTPBadHostConfig(t *testing.T) {
	server, url := mock.Server(mock.NewMockParams(mock.BASIC, mock.HTTPS))
	defer server.Close()
	cfg := fmt.Sprintf(`
hosts:
  - name: %s
    auth:
      user: %s
      password: %s
    tls:
      ca: /no/such/ca.pem
`, url, mock.User, mock.Password)
	if err := config.SetConfigFromStr([]byte(cfg)); err != nil {
		t.FailNow()
	}
	defer config.Set(config.Configuration{})
	if err := NewHTTP(nil).Fetch(context.Background(), "https://"+url+"/img/a.png"); err == nil {
		t.Fail()
	}
	if server.TotalHits() != 0 {
		t.Fail()
	}
	if err := NewOCI(nil).Fetch(context.Background(), "oci://"+url+"/test/splash:v1"); err == nil {
		t.Fail()
	}
}

func TestFile(t *testing.T) {
	s, d := newStore(t)
	defer os.RemoveAll(d)
	path := filepath.Join(d, "splash.png")
	os.WriteFile(path, []byte("splash"), 0644)
	for _, id := range []string{path, "file://" + path} {
		if err := NewFile(s).Fetch(context.Background(), id); err != nil {
			t.FailNow()
		}
		if string(readStored(t, s, id)) != "splash" {
			t.Fail()
		}
	}
	if err := NewFile(s).Fetch(context.Background(), filepath.Join(d, "missing.png")); err == nil {
		t.Fail()
	}
}

func TestOCI(t *testing.T) {
	config.Set(config.Configuration{})
	reg := httptest.NewServer(registry.New())
	defer reg.Close()
	host := strings.TrimPrefix(reg.URL, "http://")
	img, err := random.Image(1024, 2)
	if err != nil {
		t.FailNow()
	}
	ref := host + "/test/splash:v1"
	if err := crane.Push(img, ref); err != nil {
		t.FailNow()
	}
	s, d := newStore(t)
	defer os.RemoveAll(d)
	if err := NewOCI(s).Fetch(context.Background(), "oci://"+ref); err != nil {
		t.Errorf("oci fetch failed: %s", err)
	}
	if _, ok := s.Lookup("oci://" + ref); !ok {
		t.Fail()
	}
	if err := NewOCI(nil).Fetch(context.Background(), "oci://"+ref); err != nil {
		t.Fail()
	}
	if err := NewOCI(nil).Fetch(context.Background(), "oci://"+host+"/test/missing:v1"); err == nil {
		t.Fail()
	}
}

func TestScheme(t *testing.T) {
	tests := []struct {
		identifier string
		scheme     string
	}{
		{"https://cdn.example.com/a.png", "https"},
		{"HTTP://cdn.example.com/a.png", "http"},
		{"oci://quay.io/org/img:v1", "oci"},
		{"file:///tmp/a.png", "file"},
		{"/tmp/a.png", "file"},
		{"assets/a.png", "file"},
	}
	for _, tst := range tests {
		if got := Scheme(tst.identifier); got != tst.scheme {
			t.Errorf("%s: expected %s, got %s", tst.identifier, tst.scheme, got)
		}
	}
}

func TestMux(t *testing.T) {
	var calls []string
	m := NewMux()
	m.Handle("mem", Func(func(_ context.Context, identifier string) error {
		calls = append(calls, identifier)
		return nil
	}))
	if err := m.Fetch(context.Background(), "mem://a"); err != nil || len(calls) != 1 {
		t.Fail()
	}
	if err := m.Fetch(context.Background(), "ftp://a"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fail()
	}
	m = NewMux(NewHTTP(nil), NewFile(nil), NewOCI(nil))
	for _, scheme := range []string{"http", "https", "file", "oci"} {
		if _, ok := m.fetchers[scheme]; !ok {
			t.Errorf("no fetcher for %s", scheme)
		}
	}
}

func TestLimit(t *testing.T) {
	var running, peak atomic.Int32
	slow := Func(func(_ context.Context, _ string) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	f := Limit(slow, 2)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Fetch(context.Background(), "x")
		}()
	}
	wg.Wait()
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent fetches, saw %d", peak.Load())
	}
	if Limit(slow, 0) == nil {
		t.Fail()
	}
}

func TestLimitCanceled(t *testing.T) {
	block := make(chan struct{})
	f := Limit(Func(func(_ context.Context, _ string) error {
		<-block
		return nil
	}), 1)
	go f.Fetch(context.Background(), "holds-the-slot")
	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.Fetch(ctx, "waits"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fail()
	}
	close(block)
}
