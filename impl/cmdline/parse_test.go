package cmdline

import (
	"os"
	"path/filepath"
	"testing"
)

// Test that the parser detects when defaults are overridden on the command line for the serve command
func TestParseServe(t *testing.T) {
	ClearParse()
	td, err := os.MkdirTemp("", "")
	if err != nil {
		t.FailNow()
	}
	defer os.RemoveAll(td)
	afile := filepath.Join(td, "catalog.yaml")
	os.WriteFile(afile, []byte("[]"), 0644)

	os.Args = []string{"bin/imgpreload", "--cache-path", td, "--log-level", "info", "--config-file", afile, "serve", "--catalog", afile, "--port", "22", "--metrics", "2112", "--watch", "--concurrent", "3", "--pull-timeout", "123"}
	fromCmdline, cfg, err := Parse()
	if err != nil {
		t.FailNow()
	}
	if fromCmdline.Command != "serve" {
		t.Fail()
	}
	switch {
	case !fromCmdline.LogLevel:
		t.Fail()
	case !fromCmdline.ConfigFile:
		t.Fail()
	case !fromCmdline.CachePath:
		t.Fail()
	case !fromCmdline.CatalogFile:
		t.Fail()
	case !fromCmdline.Port:
		t.Fail()
	case !fromCmdline.Metrics:
		t.Fail()
	case !fromCmdline.Watch:
		t.Fail()
	case !fromCmdline.Concurrent:
		t.Fail()
	case !fromCmdline.PullTimeout:
		t.Fail()
	case fromCmdline.LogFile:
		t.Fail()
	}
	if cfg.Port != 22 || cfg.Metrics != 2112 || !cfg.Watch || cfg.Concurrent != 3 || cfg.CatalogFile != afile {
		t.Fail()
	}
}

// Test that defaults are in the parsed config when nothing is overridden
func TestParseLoadDefaults(t *testing.T) {
	ClearParse()
	os.Args = []string{"bin/imgpreload", "load"}
	fromCmdline, cfg, err := Parse()
	if err != nil {
		t.FailNow()
	}
	if fromCmdline.Command != "load" || fromCmdline.LoadConfig || fromCmdline.PullTimeout {
		t.Fail()
	}
	if cfg.PullTimeout != 60000 || cfg.Concurrent != 8 {
		t.Fail()
	}
	if cfg.LoadConfig.ByWeight || cfg.LoadConfig.Scene != "" {
		t.Fail()
	}
}

func TestParseLoadWeight(t *testing.T) {
	ClearParse()
	os.Args = []string{"bin/imgpreload", "load", "--weight", "7.5", "--wait-timeout", "1000"}
	fromCmdline, cfg, err := Parse()
	if err != nil {
		t.FailNow()
	}
	if !fromCmdline.LoadConfig || !fromCmdline.WaitTimeout {
		t.Fail()
	}
	if !cfg.LoadConfig.ByWeight || cfg.LoadConfig.Weight != 7.5 || cfg.WaitTimeout != 1000 {
		t.Fail()
	}
}

func TestParseList(t *testing.T) {
	ClearParse()
	os.Args = []string{"bin/imgpreload", "list", "--scene", "menu"}
	fromCmdline, cfg, err := Parse()
	if err != nil {
		t.FailNow()
	}
	if fromCmdline.Command != "list" || !fromCmdline.LoadConfig || cfg.LoadConfig.Scene != "menu" || cfg.LoadConfig.ByWeight {
		t.Fail()
	}
}

func TestParseErrors(t *testing.T) {
	tests := [][]string{
		{"bin/imgpreload", "list", "--scene", "menu", "--weight", "3"},
		{"bin/imgpreload", "--log-level", "loud", "version"},
		{"bin/imgpreload", "load", "--catalog", "/this/does/not/exist.yaml"},
		{"bin/imgpreload", "serve", "--concurrent", "-1"},
	}
	for _, args := range tests {
		ClearParse()
		os.Args = args
		if _, _, err := Parse(); err == nil {
			t.Errorf("expected error parsing %v", args)
		}
	}
}
