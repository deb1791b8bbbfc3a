package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	apix "github.com/tanpawarit/parcel-scout/agent/api"
	scoutx "github.com/tanpawarit/parcel-scout/agent/scout"
	configx "github.com/tanpawarit/parcel-scout/pkg/config"
	qstashx "github.com/tanpawarit/parcel-scout/pkg/qstash"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversational HTTP API",
		Long: `Run the HTTP API.

Endpoints:
  POST /chat        one conversation turn
  POST /evaluate    evaluate a listing URL end to end
  POST /scout/run   start a batch scout run (signed by QStash when configured)
  GET  /healthz
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	orchestrator, err := a.orchestrator()
	if err != nil {
		return err
	}

	handlers := apix.NewHandlers(orchestrator, a.scout)
	background := scoutx.NewBackground(a.scout, a.filters)
	if destination := a.cfg.scoutDestination(); destination != "" {
		qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
		if err != nil {
			return fmt.Errorf("load qstash config: %w", err)
		}
		qstash, err := qstashx.NewClient(*qstashCfg)
		if err != nil {
			return err
		}
		handlers.WithScout(background, qstash, destination)
	} else {
		handlers.WithScout(background, nil, "")
	}

	server := &http.Server{
		Addr:    a.cfg.Addr,
		Handler: apix.NewRouter(handlers),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.cfg.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	serverErr := server.Shutdown(shutdownCtx)
	if err := background.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("scout run did not stop before shutdown timeout")
	}
	if serverErr != nil {
		return fmt.Errorf("shutdown http server: %w", serverErr)
	}
	return nil
}
