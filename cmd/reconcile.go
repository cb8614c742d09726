package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/honorwall/roster-cli/internal/export"
	"github.com/honorwall/roster-cli/internal/loader"
	"github.com/honorwall/roster-cli/internal/reconcile"
	"github.com/honorwall/roster-cli/internal/resilience"
)

var (
	reconcileInput  string
	reconcileFormat string
	reconcileOut    string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Build a reviewable differential from an incoming dataset",
	Long: `Loads an incoming roster dataset, snapshots the record store, and computes
a differential: safe field additions and formatting fixes grouped per record,
brand-new records, and flagged conflicts for manual review.

Nothing is written to the store. The differential is persisted as a
pending-review run and optionally exported to a file; use "apply" once it has
been reviewed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "reconcile"))

		input := reconcileInput
		if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
			f := loader.NewFetcher(loader.FetchOptions{
				UserAgent:     cfg.Fetch.UserAgent,
				Timeout:       time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
				RatePerSecond: cfg.Fetch.RatePerSecond,
				Retry:         resilience.DefaultRetryConfig(),
			})
			local, err := f.FetchFile(ctx, input, cfg.Fetch.TempDir)
			if err != nil {
				return eris.Wrap(err, "reconcile: fetch dataset")
			}
			input = local
		} else if strings.HasPrefix(input, "ftp://") {
			local, err := loader.FetchFTP(ctx, input, cfg.Fetch.TempDir)
			if err != nil {
				return eris.Wrap(err, "reconcile: fetch dataset")
			}
			input = local
		}

		incoming, err := loader.Load(ctx, input, reconcileFormat, cfg.Reconcile.Mapping)
		if err != nil {
			return eris.Wrap(err, "reconcile: load dataset")
		}
		log.Info("dataset loaded", zap.String("input", input), zap.Int("records", len(incoming)))

		s, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "reconcile: open store")
		}
		defer s.Close()

		if err := s.Migrate(ctx); err != nil {
			return eris.Wrap(err, "reconcile: migrate")
		}

		existing, err := s.ListRecords(ctx)
		if err != nil {
			return eris.Wrap(err, "reconcile: snapshot store")
		}

		builder, err := reconcile.NewBuilder(cfg.Reconcile.Thresholds, cfg.Reconcile.Sentinels)
		if err != nil {
			return eris.Wrap(err, "reconcile: configure builder")
		}
		builder.SetWorkers(cfg.Reconcile.Workers)

		diff := builder.Build(incoming, existing)

		run, err := s.CreateRun(ctx, reconcileInput)
		if err != nil {
			return eris.Wrap(err, "reconcile: create run")
		}
		if err := s.SaveDifferential(ctx, run.ID, diff); err != nil {
			return eris.Wrap(err, "reconcile: save differential")
		}

		if reconcileOut != "" {
			if err := export.WriteFile(reconcileOut, diff); err != nil {
				return eris.Wrap(err, "reconcile: export")
			}
			log.Info("differential exported", zap.String("path", reconcileOut))
		}

		fmt.Printf("run %s pending review\n\n%s", run.ID, export.Summary(diff))
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileInput, "input", "", "dataset path or URL (csv, xlsx, json; http/ftp fetched first)")
	reconcileCmd.Flags().StringVar(&reconcileFormat, "format", "", "dataset format (default: inferred from extension)")
	reconcileCmd.Flags().StringVar(&reconcileOut, "out", "", "write the differential to this file (.json or .yaml)")
	_ = reconcileCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(reconcileCmd)
}
