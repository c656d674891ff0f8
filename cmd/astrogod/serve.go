package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sigreer/astrogod/internal/api"
	"github.com/sigreer/astrogod/internal/db"
	"github.com/sigreer/astrogod/internal/events"
	"github.com/sigreer/astrogod/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run discovery, supervision, monitoring and the API",
	Long: `Run every service until interrupted:

  - USB hot-plug scanning with debounced indiserver restarts
  - indiserver supervision with bounded crash restarts
  - periodic equipment detection and optional auto-setup
  - the REST API and websocket event stream
  - the sqlite history recorder and optional NATS event fan-out`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	a := newApp()
	log := a.log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", version.Version).Msg("starting astrogod")

	if err := a.kb.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("knowledge base init failed, using built-in table")
	}

	buses := []*events.Bus{a.orch.Events(), a.mon.Events()}

	if a.cfg.NATS.URL != "" {
		sink, err := events.ConnectNATS(a.cfg.NATS.URL, a.cfg.NATS.SubjectPrefix, log)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, events stay local")
		} else {
			defer sink.Close()
			for _, b := range buses {
				defer b.Subscribe(sink.Handle)()
			}
		}
	}

	if a.cfg.HistoryEnabled() {
		store, err := db.New(a.cfg.DB.Path)
		if err != nil {
			log.Warn().Err(err).Msg("history store unavailable")
		} else {
			defer store.Close()
			rec := db.NewRecorder(store, log)
			for _, b := range buses {
				rec.Attach(b)
			}
			rec.Start()
			defer rec.Close()
		}
	}

	if err := a.orch.Start(ctx); err != nil {
		fail("starting orchestrator: %v", err)
	}
	defer a.orch.Cleanup()

	a.mon.Start(ctx)
	defer a.mon.Stop()

	srv := api.New(a.mon, a.orch, a.kb, a.resolver, buses, log)
	if err := srv.ListenAndServe(ctx, a.cfg.API.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("api server failed")
		stop()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
}
