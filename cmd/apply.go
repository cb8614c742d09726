package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/honorwall/roster-cli/internal/apply"
	"github.com/honorwall/roster-cli/internal/export"
	"github.com/honorwall/roster-cli/internal/model"
)

var (
	applyRunID        string
	applyFile         string
	applyAckConflicts bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a reviewed differential to the record store",
	Long: `Commits a reviewed differential: batched field-set patches for update
groups and create operations for new records. Conflicts are never applied;
a differential that still carries them is refused unless
--acknowledge-conflicts is set, and acknowledged conflicts are skipped.

The differential comes from a pending-review run (--run) or a previously
exported file (--file). Writes are idempotent field-sets, so re-running after
a partial failure is safe.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "apply"))

		if (applyRunID == "") == (applyFile == "") {
			return eris.New("apply: exactly one of --run or --file is required")
		}

		s, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "apply: open store")
		}
		defer s.Close()

		var diff *model.Differential
		switch {
		case applyRunID != "":
			run, err := s.GetRun(ctx, applyRunID)
			if err != nil {
				return eris.Wrap(err, "apply: load run")
			}
			if run.Status != model.RunStatusPendingReview {
				return eris.Errorf("apply: run %s is %s, not pending_review", run.ID, run.Status)
			}
			if run.Differential == nil {
				return eris.Errorf("apply: run %s has no differential", run.ID)
			}
			diff = run.Differential
		default:
			diff, err = export.ReadFile(applyFile)
			if err != nil {
				return eris.Wrap(err, "apply: load differential")
			}
		}

		if diff.Empty() {
			fmt.Println("differential is empty; nothing to apply")
			return nil
		}

		applier := apply.NewApplier(s, apply.Options{
			BatchSize:            cfg.Apply.BatchSize,
			Concurrency:          cfg.Apply.Concurrency,
			RatePerSecond:        cfg.Apply.RatePerSecond,
			Verify:               cfg.Apply.Verify,
			AcknowledgeConflicts: applyAckConflicts,
		})

		result, err := applier.Apply(ctx, diff)
		if err != nil {
			return err
		}

		if applyRunID != "" {
			if err := s.SaveApplyResult(ctx, applyRunID, result); err != nil {
				return eris.Wrap(err, "apply: save result")
			}
		}

		log.Info("apply finished",
			zap.Int("patched", result.RecordsPatched),
			zap.Int("created", result.RecordsCreated),
			zap.Int("errors", len(result.Errors)))

		fmt.Printf("patched %d record(s), created %d, %d batch(es) committed\n",
			result.RecordsPatched, result.RecordsCreated, result.BatchesCommitted)
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e.Message)
		}
		if result.Failed() {
			return eris.Errorf("apply: %d batch(es) failed", len(result.Errors))
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyRunID, "run", "", "pending-review run id to apply")
	applyCmd.Flags().StringVar(&applyFile, "file", "", "exported differential file to apply")
	applyCmd.Flags().BoolVar(&applyAckConflicts, "acknowledge-conflicts", false,
		"apply the safe groups even when the differential still carries unresolved conflicts")
	rootCmd.AddCommand(applyCmd)
}
