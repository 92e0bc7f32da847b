package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// authCfg holds basic auth user/pass for host access, or a token provider (e.g.
// 'ecr') that supplies them.
type authCfg struct {
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Provider     string `yaml:"provider"`
	ProviderOpts string `yaml:"providerOpts"`
	Expiry       string `yaml:"expiry"`
}

// tlsCfg holds TLS configuration for host access
type tlsCfg struct {
	Cert               string `yaml:"cert"`
	Key                string `yaml:"key"`
	CA                 string `yaml:"ca"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// HostConfig combines authCfg and tlsCfg and configures the fetchers for access
// to one host. For http(s) identifiers the host is the URL host (with port if
// any). For oci identifiers it is the registry, e.g. 'quay.io'.
type HostConfig struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Auth        authCfg `yaml:"auth"`
	Tls         tlsCfg  `yaml:"tls"`
}

// HostOpts is a parsed HostConfig, ready for use by a fetcher
type HostOpts struct {
	Username     string
	Password     string
	Provider     string
	ProviderOpts string
	Expiry       string
	TlsCfg       *tls.Config
}

// LoadConfig configures the selector for the load and list sub-commands. If
// ByWeight is set then Weight selects, else if Scene is non-empty then Scene
// selects, else the entire catalog is selected.
type LoadConfig struct {
	Scene    string  `yaml:"scene"`
	Weight   float64 `yaml:"weight"`
	ByWeight bool    `yaml:"byWeight"`
}

// Configuration represents the totality of configuration knobs and dials.
type Configuration struct {
	LogLevel    string       `yaml:"logLevel"`
	LogFile     string       `yaml:"logFile"`
	ConfigFile  string       `yaml:"configFile"`
	CachePath   string       `yaml:"cachePath"`
	CatalogFile string       `yaml:"catalogFile"`
	Port        int64        `yaml:"port"`
	Metrics     int64        `yaml:"metrics"`
	PullTimeout int64        `yaml:"pullTimeout"`
	WaitTimeout int64        `yaml:"waitTimeout"`
	Concurrent  int64        `yaml:"concurrent"`
	Watch       bool         `yaml:"watch"`
	Hosts       []HostConfig `yaml:"hosts"`
	LoadConfig  LoadConfig   `yaml:"loadConfig"`
}

// FromCmdLine has a flag for every command-line option. The parsing code
// sets the flag to true if the option was explicitly provided on the command
// line by the user.
type FromCmdLine struct {
	Command     string
	LogLevel    bool
	LogFile     bool
	ConfigFile  bool
	CachePath   bool
	CatalogFile bool
	Port        bool
	Metrics     bool
	PullTimeout bool
	WaitTimeout bool
	Concurrent  bool
	Watch       bool
	LoadConfig  bool
}

var (
	config    Configuration
	emptyAuth = authCfg{}
	emptyTls  = tlsCfg{}
	optsMu    sync.Mutex
	optsCache = map[string]HostOpts{}
)

func GetLogLevel() string {
	return config.LogLevel
}

func GetLogFile() string {
	return config.LogFile
}

func GetConfigFile() string {
	return config.ConfigFile
}

func GetCachePath() string {
	return config.CachePath
}

func GetCatalogFile() string {
	return config.CatalogFile
}

func GetPort() int64 {
	return config.Port
}

func GetMetrics() int64 {
	return config.Metrics
}

func GetPullTimeout() int64 {
	return config.PullTimeout
}

func GetWaitTimeout() int64 {
	return config.WaitTimeout
}

func GetConcurrent() int64 {
	return config.Concurrent
}

func GetWatch() bool {
	return config.Watch
}

func GetHosts() []HostConfig {
	return config.Hosts
}

func GetLoadConfig() LoadConfig {
	return config.LoadConfig
}

// Load loads the passed configuration file into the configuration struct
func Load(configFile string) error {
	if _, err := os.Stat(configFile); err != nil {
		return fmt.Errorf("unable to stat configuration file: %s", configFile)
	}
	if contents, err := os.ReadFile(configFile); err != nil {
		return fmt.Errorf("error reading configuration file: %s", configFile)
	} else if err := SetConfigFromStr(contents); err != nil {
		return fmt.Errorf("error parsing configuration file: %s, the error was: %s", configFile, err)
	}
	return nil
}

// Get gets the current configuration
func Get() Configuration {
	return config
}

// Set replaces the configuration with the passed configuration
func Set(cfg Configuration) {
	config = cfg
	clearOpts()
}

// SetConfigFromStr parses the yaml input and sets the configuration from it
func SetConfigFromStr(configBytes []byte) error {
	var cfg Configuration
	if err := yaml.Unmarshal(configBytes, &cfg); err != nil {
		return err
	}
	Set(cfg)
	return nil
}

func clearOpts() {
	optsMu.Lock()
	optsCache = map[string]HostOpts{}
	optsMu.Unlock()
}

// ConfigFor looks for a configuration entry keyed by the passed 'host' arg (e.g.
// 'cdn.example.com:8443') and returns fetch options for that host. If no matching
// config is found, then empty options are returned which means anonymous access
// with the system trust store. If the entry's TLS files can't be loaded, empty
// options and an error are returned.
//
// Since the config might involve loading certs, once parsed the options are saved for
// reuse until the configuration is replaced.
func ConfigFor(host string) (HostOpts, error) {
	optsMu.Lock()
	opts, cached := optsCache[host]
	optsMu.Unlock()
	if cached {
		return opts, nil
	}

	found := HostConfig{}
	for _, h := range config.Hosts {
		if h.Name == host {
			found = h
			break
		}
	}
	if found == (HostConfig{}) {
		return opts, nil
	}

	if found.Auth != emptyAuth {
		opts.Username = found.Auth.User
		opts.Password = found.Auth.Password
		opts.Provider = found.Auth.Provider
		opts.ProviderOpts = found.Auth.ProviderOpts
		opts.Expiry = found.Auth.Expiry
	}

	if found.Tls != emptyTls {
		var cp *x509.CertPool
		var clientCerts []tls.Certificate = []tls.Certificate{}
		if found.Tls.CA != "" {
			cp = x509.NewCertPool()
			caCert, err := os.ReadFile(found.Tls.CA)
			if err != nil {
				return HostOpts{}, fmt.Errorf("unable to load CA for config entry %s from file: %s", host, found.Tls.CA)
			}
			cp.AppendCertsFromPEM(caCert)
		}
		if found.Tls.Cert != "" && found.Tls.Key != "" {
			cert, err := tls.LoadX509KeyPair(found.Tls.Cert, found.Tls.Key)
			if err != nil {
				return HostOpts{}, fmt.Errorf("unable to load client cert and/or key for config entry %s from files: cert: %s, key: %s", host, found.Tls.Cert, found.Tls.Key)
			}
			clientCerts = []tls.Certificate{cert}
		}
		opts.TlsCfg = &tls.Config{
			InsecureSkipVerify: found.Tls.InsecureSkipVerify,
			RootCAs:            cp,
			Certificates:       clientCerts,
		}
	}
	optsMu.Lock()
	optsCache[host] = opts
	optsMu.Unlock()
	return opts, nil
}
