package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/honorwall/roster-cli/internal/export"
	"github.com/honorwall/roster-cli/internal/model"
	"github.com/honorwall/roster-cli/internal/store"
)

var runsStatus string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List reconciliation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "runs: open store")
		}
		defer s.Close()

		runs, err := s.ListRuns(ctx, store.RunFilter{Status: model.RunStatus(runsStatus)})
		if err != nil {
			return eris.Wrap(err, "runs: list")
		}

		if len(runs) == 0 {
			fmt.Println("no runs")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %-15s %-20s %s\n",
				r.ID, r.Status, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Source)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run's differential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "runs show: open store")
		}
		defer s.Close()

		run, err := s.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show: load run")
		}

		fmt.Printf("run %s (%s) source=%s\n", run.ID, run.Status, run.Source)
		if run.Differential != nil {
			fmt.Println()
			fmt.Print(export.Summary(run.Differential))
		}
		if run.ApplyResult != nil {
			fmt.Printf("\napplied: %d patched, %d created, %d errors\n",
				run.ApplyResult.RecordsPatched, run.ApplyResult.RecordsCreated, len(run.ApplyResult.Errors))
		}
		return nil
	},
}

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id> <path>",
	Short: "Export one run's differential to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "runs export: open store")
		}
		defer s.Close()

		run, err := s.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs export: load run")
		}
		if run.Differential == nil {
			return eris.Errorf("run %s has no differential", run.ID)
		}

		if err := export.WriteFile(args[1], run.Differential); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", args[1])
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status")
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}
