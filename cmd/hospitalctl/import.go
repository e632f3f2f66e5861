package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hospital-bulk/internal/core"
	"github.com/JonMunkholm/hospital-bulk/internal/history"
	"github.com/JonMunkholm/hospital-bulk/internal/hospitalapi"
)

var flagNoRecord bool

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import one CSV batch and print the JSON report",
	Long: "Sends every row of the CSV to the Hospital Directory API and activates the batch\n" +
		"when all rows were created. Use \"-\" to read the CSV from stdin.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&flagNoRecord, "no-record", false, "Do not record the batch in the import history")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	data, fileName, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return withExitCode(exitUsage, err)
	}
	if int64(len(data)) > cfg.Import.MaxFileSize {
		return withExitCode(exitValidation, fmt.Errorf("file too large: %d bytes exceeds %d", len(data), cfg.Import.MaxFileSize))
	}

	var recorder core.HistoryRecorder
	if cfg.Database.Enabled() && !flagNoRecord {
		pool, err := history.NewPool(ctx, cfg.Database)
		if err != nil {
			return withExitCode(exitDBConn, err)
		}
		defer pool.Close()
		recorder = history.NewStore(pool)
	}

	client := hospitalapi.New(cfg.HospitalAPI.BaseURL, cfg.HospitalAPI.Timeout)
	importer := core.NewImporter(client, core.ImporterConfig{
		MaxRows:       cfg.Import.MaxRows,
		History:       recorder,
		RecordTimeout: cfg.Import.HistoryTimeout,
	})

	report, err := importer.Import(ctx, data, core.UploadMeta{FileName: fileName, UserAgent: "hospitalctl"})
	if err != nil {
		var inputErr *core.InputError
		if errors.As(err, &inputErr) {
			return withExitCode(exitValidation, fmt.Errorf("%s: %w", core.FormatUserError(err), err))
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if report.FailedHospitals > 0 || !report.BatchActivated {
		slog.Warn("batch not activated",
			"batch_id", report.BatchID,
			"failed", report.FailedHospitals,
			"activation_error", report.ActivationError,
		)
		return withExitCode(exitPartial, fmt.Errorf("batch %s was not activated", report.BatchID))
	}
	return nil
}

// readInput reads the CSV from path, or from stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return data, "stdin", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return data, filepath.Base(path), nil
}
