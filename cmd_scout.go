package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/parcel-scout/pkg/config"
	qstashx "github.com/tanpawarit/parcel-scout/pkg/qstash"
)

func newScoutCmd() *cobra.Command {
	var schedule bool

	cmd := &cobra.Command{
		Use:   "scout",
		Short: "Evaluate every new listing matching the SCOUT_* filters",
		Long: `Fetch new listings from the listing service, evaluate each one through the
three specialists and the aggregator, and save one result per listing.

With --schedule the run is not executed; instead a QStash schedule is created
that calls POST /scout/run on APP_PUBLIC_URL according to APP_SCOUT_CRON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if schedule {
				return runScoutSchedule(cmd)
			}
			return runScout(cmd)
		},
	}
	cmd.Flags().BoolVar(&schedule, "schedule", false, "register the daily run with QStash instead of running now")
	return cmd
}

func runScout(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.scout.Run(ctx, a.filters)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "fetched=%d evaluated=%d failed=%d duration=%s\n",
		report.Fetched, len(report.Evaluated), len(report.Failed), report.Duration)
	for id, failure := range report.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", id, failure)
	}
	return nil
}

func runScoutSchedule(cmd *cobra.Command) error {
	cfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return fmt.Errorf("load app config: %w", err)
	}
	destination := cfg.scoutDestination()
	if destination == "" {
		return errors.New("APP_PUBLIC_URL is required to schedule the scout")
	}

	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return fmt.Errorf("load qstash config: %w", err)
	}
	client, err := qstashx.NewClient(*qstashCfg)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"trigger": "schedule"})
	if err != nil {
		return err
	}
	id, err := client.Schedule(cmd.Context(), destination, cfg.ScoutCron, body)
	if err != nil {
		return err
	}

	log.Info().Str("schedule_id", id).Str("cron", cfg.ScoutCron).Str("destination", destination).Msg("scout scheduled")
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
