package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	datasourcex "github.com/tanpawarit/parcel-scout/agent/datasource"
	configx "github.com/tanpawarit/parcel-scout/pkg/config"
)

func newDatasourceCmd() *cobra.Command {
	names := make([]string, 0, len(datasourcex.Services()))
	for _, s := range datasourcex.Services() {
		names = append(names, string(s))
	}

	return &cobra.Command{
		Use:       "datasource <" + strings.Join(names, "|") + ">",
		Short:     "Run one mock data service over RPC",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: names,
		RunE:      runDatasource,
	}
}

func runDatasource(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service := datasourcex.Service(args[0])
	cfg, err := configx.New[datasourcex.Config]("DATASOURCE")
	if err != nil {
		return fmt.Errorf("load datasource config: %w", err)
	}
	port, err := cfg.Port(service)
	if err != nil {
		return err
	}
	rpcServer, err := datasourcex.NewServer(service, time.Now)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: rpcServer.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("service", string(service)).
			Int("port", port).
			Strs("operations", rpcServer.Operations()).
			Msg("data service listening")
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
