package subcmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aceeric/imgpreload/impl/config"
	"github.com/aceeric/imgpreload/impl/globals"
)

// setupCatalog writes three resource files and a catalog that puts the first two in
// the 'menu' scene and gives the third a weight of 10. It returns the temp dir and the
// catalog file.
func setupCatalog(t *testing.T) (string, string) {
	td, err := os.MkdirTemp("", "")
	if err != nil {
		t.FailNow()
	}
	var paths []string
	for _, name := range []string{"logo.png", "bg.png", "boss.png"} {
		path := filepath.Join(td, name)
		if err := os.WriteFile(path, []byte("content of "+name), 0644); err != nil {
			t.FailNow()
		}
		paths = append(paths, path)
	}
	catalogYaml := fmt.Sprintf(`
- scene: menu
  items:
    - %s
    - file://%s
- items:
    - identifier: %s
      weight: 10
    - weight: 3
`, paths[0], paths[1], paths[2])
	catalogFile := filepath.Join(td, "catalog.yaml")
	if err := os.WriteFile(catalogFile, []byte(catalogYaml), 0644); err != nil {
		t.FailNow()
	}
	return td, catalogFile
}

func countBlobs(t *testing.T, cachePath string) int {
	entries, err := os.ReadDir(filepath.Join(cachePath, globals.BlobsDir))
	if err != nil {
		t.FailNow()
	}
	return len(entries)
}

func TestList(t *testing.T) {
	td, catalogFile := setupCatalog(t)
	defer os.RemoveAll(td)
	config.Set(config.Configuration{CatalogFile: catalogFile, LoadConfig: config.LoadConfig{Scene: "menu"}})
	var buf bytes.Buffer
	if err := List(&buf); err != nil {
		t.FailNow()
	}
	out := buf.String()
	// the weighted resource has no scene so it is selected too
	if !strings.Contains(out, "3 resource(s) selected by scene=menu") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "discarded: ") {
		t.Fail()
	}
	config.Set(config.Configuration{CatalogFile: catalogFile, LoadConfig: config.LoadConfig{ByWeight: true, Weight: 11}})
	buf.Reset()
	if err := List(&buf); err != nil {
		t.FailNow()
	}
	if !strings.Contains(buf.String(), "2 resource(s) selected by weight>=11") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestListNoCatalog(t *testing.T) {
	config.Set(config.Configuration{})
	if err := List(&bytes.Buffer{}); err == nil {
		t.Fail()
	}
}

func TestLoad(t *testing.T) {
	td, catalogFile := setupCatalog(t)
	defer os.RemoveAll(td)
	cachePath := filepath.Join(td, "cache")
	config.Set(config.Configuration{
		CachePath:   cachePath,
		CatalogFile: catalogFile,
		Concurrent:  2,
		PullTimeout: 5000,
		WaitTimeout: 5000,
		LoadConfig:  config.LoadConfig{ByWeight: true, Weight: 10},
	})
	if err := Load(); err != nil {
		t.FailNow()
	}
	if countBlobs(t, cachePath) != 3 {
		t.Fail()
	}
}

func TestLoadMissingResource(t *testing.T) {
	td, err := os.MkdirTemp("", "")
	if err != nil {
		t.FailNow()
	}
	defer os.RemoveAll(td)
	catalogFile := filepath.Join(td, "catalog.yaml")
	os.WriteFile(catalogFile, []byte("- items: ["+filepath.Join(td, "nope.png")+"]\n"), 0644)
	config.Set(config.Configuration{
		CachePath:   filepath.Join(td, "cache"),
		CatalogFile: catalogFile,
		WaitTimeout: 200,
	})
	// a failed fetch never completes the load so the wait times out
	if err := Load(); err == nil {
		t.Fail()
	}
}

func TestServe(t *testing.T) {
	td, catalogFile := setupCatalog(t)
	defer os.RemoveAll(td)
	cachePath := filepath.Join(td, "cache")
	config.Set(config.Configuration{
		CachePath:   cachePath,
		CatalogFile: catalogFile,
		Port:        0,
		Concurrent:  2,
		PullTimeout: 5000,
	})
	InitListener()
	done := make(chan error)
	go func() {
		done <- Serve("test", "now")
	}()
	start := time.Now()
	for GetListener() == nil {
		if time.Since(start) > 3*time.Second {
			t.FailNow()
		}
		time.Sleep(10 * time.Millisecond)
	}
	url := fmt.Sprintf("http://localhost:%d", GetListener().Addr().(*net.TCPAddr).Port)

	resp, err := http.Post(url+"/loads?scene=menu", "", nil)
	if err != nil || resp.StatusCode != http.StatusAccepted {
		t.FailNow()
	}
	var started struct {
		ID    uint64 `json:"id"`
		Total int    `json:"total"`
	}
	err = json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	if err != nil || started.Total != 3 {
		t.FailNow()
	}

	var status struct {
		Done      bool `json:"done"`
		Completed int  `json:"completed"`
	}
	for !status.Done {
		if time.Since(start) > 10*time.Second {
			t.FailNow()
		}
		resp, err := http.Get(fmt.Sprintf("%s/loads/%d", url, started.ID))
		if err != nil || resp.StatusCode != http.StatusOK {
			t.FailNow()
		}
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			t.FailNow()
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.Completed != 3 {
		t.Fail()
	}

	resp, err = http.Get(url + "/cmd/stop")
	if err != nil {
		t.FailNow()
	}
	resp.Body.Close()
	if err := <-done; err != nil {
		t.Fail()
	}
	if countBlobs(t, cachePath) != 3 {
		t.Fail()
	}
}
