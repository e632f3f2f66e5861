package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hospital-bulk/internal/history"
)

var flagLimit int

var historyCmd = &cobra.Command{
	Use:   "history [batch-id]",
	Short: "List recent import batches, or show one batch in full",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&flagLimit, "limit", history.DefaultListLimit, "Maximum number of batches to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !cfg.Database.Enabled() {
		return withExitCode(exitUsage, errors.New("--dsn or DATABASE_URL is required"))
	}

	pool, err := history.NewPool(ctx, cfg.Database)
	if err != nil {
		return withExitCode(exitDBConn, err)
	}
	defer pool.Close()
	store := history.NewStore(pool)

	if len(args) == 1 {
		rec, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	batches, err := store.ListRecent(ctx, flagLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH ID\tFILE\tTOTAL\tFAILED\tACTIVATED\tSECONDS\tCOMPLETED")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\t%.2f\t%s\n",
			b.BatchID, b.FileName, b.TotalHospitals, b.FailedHospitals,
			b.BatchActivated, b.ProcessingTimeSeconds, b.CompletedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
