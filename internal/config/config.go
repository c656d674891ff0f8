package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sigreer/astrogod/internal/logger"
)

type Config struct {
	Server    Server        `yaml:"server"`
	USB       USB           `yaml:"usb"`
	Monitor   Monitor       `yaml:"monitor"`
	Drivers   Drivers       `yaml:"drivers"`
	Knowledge Knowledge     `yaml:"knowledge"`
	Props     Props         `yaml:"properties"`
	DB        DB            `yaml:"db"`
	API       API           `yaml:"api"`
	NATS      NATS          `yaml:"nats"`
	Log       logger.Config `yaml:"log"`
}

// Server configures the supervised indiserver process.
type Server struct {
	Binary         string        `yaml:"binary"`
	Port           int           `yaml:"port"`
	Verbose        int           `yaml:"verbose"`
	FIFO           string        `yaml:"fifo,omitempty"`
	MaxRetries     *int          `yaml:"max_retries,omitempty"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	StartGrace     time.Duration `yaml:"start_grace"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
	StartupDrivers []string      `yaml:"startup_drivers,omitempty"`
}

type USB struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
	Enrich   *bool         `yaml:"enrich,omitempty"`
}

type Monitor struct {
	Interval  time.Duration `yaml:"interval"`
	AutoSetup bool          `yaml:"auto_setup"`
}

type Drivers struct {
	SearchPaths    []string      `yaml:"search_paths,omitempty"`
	PackageManager string        `yaml:"package_manager"`
	UseSudo        *bool         `yaml:"use_sudo,omitempty"`
	CatalogTTL     time.Duration `yaml:"catalog_ttl"`
}

type Knowledge struct {
	CachePath    string        `yaml:"cache_path"`
	TTL          time.Duration `yaml:"ttl"`
	Sources      []string      `yaml:"sources,omitempty"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// Props configures the property client that talks to a running indiserver.
type Props struct {
	Host         string        `yaml:"host"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type DB struct {
	Path    string `yaml:"path"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

type API struct {
	Listen string `yaml:"listen"`
}

type NATS struct {
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultSearchPaths lists where driver executables are looked up, in order.
var DefaultSearchPaths = []string{
	"/usr/bin",
	"/usr/local/bin",
	"/usr/lib/indi",
	"/opt/indi/bin",
	"/snap/bin",
}

// DefaultCatalogSources are the upstream driver directory listings.
var DefaultCatalogSources = []string{
	"https://api.github.com/repos/indilib/indi-3rdparty/contents",
	"https://api.github.com/repos/indilib/indi/contents/drivers",
}

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }

// defaultConfig provides baseline settings; every zero field in a loaded file falls back to these
var defaultConfig = Config{
	Server: Server{
		Binary:      "indiserver",
		Port:        7624,
		Verbose:     1,
		MaxRetries:  intPtr(3),
		RetryDelay:  5 * time.Second,
		StartGrace:  2 * time.Second,
		StopTimeout: 5 * time.Second,
	},
	USB: USB{
		Interval: 5 * time.Second,
		Debounce: 3 * time.Second,
		Enrich:   boolPtr(true),
	},
	Monitor: Monitor{
		Interval: 30 * time.Second,
	},
	Drivers: Drivers{
		SearchPaths:    DefaultSearchPaths,
		PackageManager: "apt-get",
		UseSudo:        boolPtr(true),
		CatalogTTL:     time.Hour,
	},
	Knowledge: Knowledge{
		CachePath:    "/var/lib/astrogod/equipment.json",
		TTL:          24 * time.Hour,
		Sources:      DefaultCatalogSources,
		FetchTimeout: 15 * time.Second,
	},
	Props: Props{
		Host:         "localhost",
		PollInterval: 500 * time.Millisecond,
		Timeout:      30 * time.Second,
	},
	DB: DB{
		Path:    "/var/lib/astrogod/history.db",
		Enabled: boolPtr(true),
	},
	API: API{
		Listen: ":8624",
	},
	NATS: NATS{
		SubjectPrefix: "astrogod.events",
	},
	Log: logger.DefaultConfig(),
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := Config{}
	cfg.applyDefaults()
	return &cfg
}

func Load(path string) (*Config, error) {
	if path == "" {
		// Try default locations
		candidates := []string{
			"/etc/astrogod/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/astrogod/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv lets a handful of deployment knobs be set without a file.
func (c *Config) applyEnv() {
	if v := os.Getenv("ASTROGOD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ASTROGOD_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("ASTROGOD_LISTEN"); v != "" {
		c.API.Listen = v
	}
}

func (c *Config) applyDefaults() {
	d := defaultConfig

	if c.Server.Binary == "" {
		c.Server.Binary = d.Server.Binary
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.Verbose == 0 {
		c.Server.Verbose = d.Server.Verbose
	}
	if c.Server.MaxRetries == nil {
		c.Server.MaxRetries = intPtr(*d.Server.MaxRetries)
	}
	if c.Server.RetryDelay == 0 {
		c.Server.RetryDelay = d.Server.RetryDelay
	}
	if c.Server.StartGrace == 0 {
		c.Server.StartGrace = d.Server.StartGrace
	}
	if c.Server.StopTimeout == 0 {
		c.Server.StopTimeout = d.Server.StopTimeout
	}

	if c.USB.Interval == 0 {
		c.USB.Interval = d.USB.Interval
	}
	if c.USB.Debounce == 0 {
		c.USB.Debounce = d.USB.Debounce
	}
	if c.USB.Enrich == nil {
		c.USB.Enrich = boolPtr(*d.USB.Enrich)
	}

	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = d.Monitor.Interval
	}

	if len(c.Drivers.SearchPaths) == 0 {
		c.Drivers.SearchPaths = append([]string(nil), d.Drivers.SearchPaths...)
	}
	if c.Drivers.PackageManager == "" {
		c.Drivers.PackageManager = d.Drivers.PackageManager
	}
	if c.Drivers.UseSudo == nil {
		c.Drivers.UseSudo = boolPtr(*d.Drivers.UseSudo)
	}
	if c.Drivers.CatalogTTL == 0 {
		c.Drivers.CatalogTTL = d.Drivers.CatalogTTL
	}

	if c.Knowledge.CachePath == "" {
		c.Knowledge.CachePath = d.Knowledge.CachePath
	}
	if c.Knowledge.TTL == 0 {
		c.Knowledge.TTL = d.Knowledge.TTL
	}
	if len(c.Knowledge.Sources) == 0 {
		c.Knowledge.Sources = append([]string(nil), d.Knowledge.Sources...)
	}
	if c.Knowledge.FetchTimeout == 0 {
		c.Knowledge.FetchTimeout = d.Knowledge.FetchTimeout
	}

	if c.Props.Host == "" {
		c.Props.Host = d.Props.Host
	}
	if c.Props.PollInterval == 0 {
		c.Props.PollInterval = d.Props.PollInterval
	}
	if c.Props.Timeout == 0 {
		c.Props.Timeout = d.Props.Timeout
	}

	if c.DB.Path == "" {
		c.DB.Path = d.DB.Path
	}
	if c.DB.Enabled == nil {
		c.DB.Enabled = boolPtr(*d.DB.Enabled)
	}

	if c.API.Listen == "" {
		c.API.Listen = d.API.Listen
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = d.NATS.SubjectPrefix
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Output == "" {
		c.Log.Output = d.Log.Output
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.ServerMaxRetries() < 0 {
		return fmt.Errorf("server.max_retries must not be negative")
	}
	if c.USB.Interval < 0 || c.Monitor.Interval < 0 {
		return fmt.Errorf("scan intervals must not be negative")
	}
	return nil
}

// ServerMaxRetries is how many consecutive unexpected indiserver exits are retried.
func (c *Config) ServerMaxRetries() int {
	if c.Server.MaxRetries == nil {
		return *defaultConfig.Server.MaxRetries
	}
	return *c.Server.MaxRetries
}

// EnrichUSB reports whether verbose per-device USB queries are enabled.
func (c *Config) EnrichUSB() bool {
	return c.USB.Enrich == nil || *c.USB.Enrich
}

// SudoInstall reports whether package installs are run through sudo.
func (c *Config) SudoInstall() bool {
	return c.Drivers.UseSudo == nil || *c.Drivers.UseSudo
}

// HistoryEnabled reports whether the sqlite history store is used.
func (c *Config) HistoryEnabled() bool {
	return c.DB.Enabled == nil || *c.DB.Enabled
}
