package config

import (
	"os"
	"path/filepath"
	"testing"
)

var cfgYaml = `
logLevel: info
cachePath: /tmp/frobozz
catalogFile: /etc/imgpreload/catalog.yaml
port: 9090
pullTimeout: 5000
concurrent: 4
loadConfig:
  scene: menu
hosts:
  - name: cdn.example.com
    description: the image cdn
    auth:
      user: flathead
      password: fizzbin
    tls:
      insecureSkipVerify: true
  - name: 123456789012.dkr.ecr.us-east-1.amazonaws.com
    auth:
      provider: ecr
      providerOpts: region=us-east-1
      expiry: 6h
`

func TestLoad(t *testing.T) {
	td, err := os.MkdirTemp("", "")
	if err != nil {
		t.FailNow()
	}
	defer os.RemoveAll(td)
	cfgFile := filepath.Join(td, "cfg.yaml")
	os.WriteFile(cfgFile, []byte(cfgYaml), 0644)
	if err := Load(cfgFile); err != nil {
		t.FailNow()
	}
	if GetLogLevel() != "info" || GetPort() != 9090 || GetPullTimeout() != 5000 || GetConcurrent() != 4 {
		t.Fail()
	}
	if GetLoadConfig().Scene != "menu" || GetLoadConfig().ByWeight {
		t.Fail()
	}
	if len(GetHosts()) != 2 || GetHosts()[0].Auth.User != "flathead" {
		t.Fail()
	}
}

func TestLoadMissing(t *testing.T) {
	if err := Load("/this/does/not/exist.yaml"); err == nil {
		t.Fail()
	}
}

func TestConfigFor(t *testing.T) {
	if err := SetConfigFromStr([]byte(cfgYaml)); err != nil {
		t.FailNow()
	}
	opts, err := ConfigFor("cdn.example.com")
	if err != nil {
		t.FailNow()
	}
	if opts.Username != "flathead" || opts.Password != "fizzbin" {
		t.Fail()
	}
	if opts.TlsCfg == nil || !opts.TlsCfg.InsecureSkipVerify {
		t.Fail()
	}
	opts, err = ConfigFor("123456789012.dkr.ecr.us-east-1.amazonaws.com")
	if err != nil || opts.Provider != "ecr" || opts.ProviderOpts != "region=us-east-1" || opts.Expiry != "6h" || opts.Username != "" {
		t.Fail()
	}
	opts, err = ConfigFor("elsewhere.io")
	if err != nil || opts.Username != "" || opts.TlsCfg != nil {
		t.Fail()
	}
}

func TestConfigForBadCA(t *testing.T) {
	Set(Configuration{Hosts: []HostConfig{{
		Name: "x.io",
		Auth: authCfg{User: "frodo", Password: "baggins"},
		Tls:  tlsCfg{CA: "/no/such/ca.pem"},
	}}})
	opts, err := ConfigFor("x.io")
	if err == nil {
		t.Fail()
	}
	// credentials must not leak into a fallback without the configured TLS
	if opts.Username != "" || opts.Password != "" || opts.TlsCfg != nil {
		t.Fail()
	}
}

// Values given on the command line win, unset values in the file are defaulted
// from the command line, and set values in the file are otherwise kept.
func TestMerge(t *testing.T) {
	if err := SetConfigFromStr([]byte(cfgYaml)); err != nil {
		t.FailNow()
	}
	fromCmdline := FromCmdLine{Port: true}
	cmdline := Configuration{
		LogLevel:    "error",
		Port:        8888,
		PullTimeout: 60000,
		Metrics:     2112,
		CachePath:   "/var/lib/imgpreload",
	}
	Merge(fromCmdline, cmdline)
	switch {
	case GetPort() != 8888:
		t.Fail()
	case GetLogLevel() != "info":
		t.Fail()
	case GetPullTimeout() != 5000:
		t.Fail()
	case GetMetrics() != 2112:
		t.Fail()
	case GetCachePath() != "/tmp/frobozz":
		t.Fail()
	}
}
