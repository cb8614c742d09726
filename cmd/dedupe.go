package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/honorwall/roster-cli/internal/reconcile"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Scan the record store for likely duplicate records",
	Long: `Runs the all-pairs duplicate scan over the current store snapshot and
prints a ranked candidate list: exact matches, high-similarity names, and
same-last-name variants. Read-only; merging is a manual decision.

The scan is O(n²) over the store, which is fine for the dataset sizes this
tool targets (hundreds to low thousands of records).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "dedupe"))

		s, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "dedupe: open store")
		}
		defer s.Close()

		records, err := s.ListRecords(ctx)
		if err != nil {
			return eris.Wrap(err, "dedupe: snapshot store")
		}
		log.Info("scanning for duplicates", zap.Int("records", len(records)))

		detector, err := reconcile.NewDetector(cfg.Reconcile.Thresholds)
		if err != nil {
			return eris.Wrap(err, "dedupe: configure detector")
		}
		detector.Workers = cfg.Reconcile.Workers

		candidates := detector.FindDuplicates(records)
		if len(candidates) == 0 {
			fmt.Println("no duplicate candidates found")
			return nil
		}

		for _, c := range candidates {
			fmt.Printf("%-24s %.2f  %q (%s) / %q (%s)",
				c.MatchType, c.Score, c.A.Name(), c.A.ID, c.B.Name(), c.B.ID)
			if c.Note != "" {
				fmt.Printf("  [%s]", c.Note)
			}
			fmt.Println()
		}
		fmt.Printf("\n%d candidate pair(s)\n", len(candidates))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
}
