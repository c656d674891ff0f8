package main

import (
	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/sigreer/astrogod/internal/cache"
	"github.com/sigreer/astrogod/internal/config"
	"github.com/sigreer/astrogod/internal/detect"
	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/knowledge"
	"github.com/sigreer/astrogod/internal/logger"
	"github.com/sigreer/astrogod/internal/monitor"
	"github.com/sigreer/astrogod/internal/orchestrator"
	"github.com/sigreer/astrogod/internal/supervisor"
	"github.com/sigreer/astrogod/internal/system"
	"github.com/sigreer/astrogod/internal/usb"
)

// app holds every service, constructed once and wired by reference.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	runner   system.Runner
	resolver *drivers.Resolver
	kb       *knowledge.Base
	scanner  *usb.Scanner
	sup      *supervisor.Supervisor
	detector *detect.Detector
	orch     *orchestrator.Coordinator
	mon      *monitor.Monitor
}

func loadConfig() (*config.Config, zerolog.Logger) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fail("loading config: %v", err)
	}
	if debug {
		cfg.Log.Debug = true
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fail("configuring logger: %v", err)
	}
	return cfg, log
}

func newApp() *app {
	cfg, log := loadConfig()
	clk := clock.RealClock{}
	runner := system.ExecRunner{}

	catalog := drivers.NewCatalogClient(cfg.Knowledge.Sources, cfg.Knowledge.FetchTimeout)

	resolver := drivers.New(drivers.Options{
		SearchPaths:    cfg.Drivers.SearchPaths,
		PackageManager: cfg.Drivers.PackageManager,
		UseSudo:        cfg.SudoInstall(),
		CatalogTTL:     cfg.Drivers.CatalogTTL,
	}, runner, catalog, cache.New[[]string](), log)

	kb := knowledge.New(knowledge.Options{
		CachePath: cfg.Knowledge.CachePath,
		TTL:       cfg.Knowledge.TTL,
	}, catalog, clk, log)
	resolver.SetFallback(kb.KnownDrivers)

	scanner := usb.NewScanner(usb.Options{
		Interval: cfg.USB.Interval,
		Enrich:   cfg.EnrichUSB(),
	}, runner, resolver, clk, log)

	sup := supervisor.New(supervisor.Options{
		Binary:      cfg.Server.Binary,
		Port:        cfg.Server.Port,
		Verbose:     cfg.Server.Verbose,
		FIFO:        cfg.Server.FIFO,
		MaxRetries:  cfg.ServerMaxRetries(),
		RetryDelay:  cfg.Server.RetryDelay,
		StartGrace:  cfg.Server.StartGrace,
		StopTimeout: cfg.Server.StopTimeout,
	}, supervisor.ExecLauncher{}, supervisor.SystemProbe{}, resolver, clk, log)

	detector := detect.New(scanner, kb, resolver, sup, log,
		detect.WithSerial(detect.PortEnumerator{}),
		detect.WithNetwork(detect.NoNetwork{}),
	)

	orch := orchestrator.New(orchestrator.Options{
		Debounce:       cfg.USB.Debounce,
		StartupDrivers: cfg.Server.StartupDrivers,
	}, scanner, sup, clk, log)

	mon := monitor.New(monitor.Options{
		Interval:  cfg.Monitor.Interval,
		AutoSetup: cfg.Monitor.AutoSetup,
	}, detector, clk, log)

	return &app{
		cfg:      cfg,
		log:      log,
		runner:   runner,
		resolver: resolver,
		kb:       kb,
		scanner:  scanner,
		sup:      sup,
		detector: detector,
		orch:     orch,
		mon:      mon,
	}
}
