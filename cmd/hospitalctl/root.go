package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hospital-bulk/internal/config"
	"github.com/JonMunkholm/hospital-bulk/internal/logging"
)

// Exit codes.
const (
	exitUsage      = 1
	exitValidation = 2
	exitDBConn     = 3
	exitPartial    = 6
)

var (
	cfg *config.Config

	flagAPIURL    string
	flagDSN       string
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:           "hospitalctl",
	Short:         "Bulk hospital import tool",
	Long:          "Sends hospital CSV batches to the Hospital Directory API and reads the import history.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env file fills gaps only; the real environment wins.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		applyFlags(loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		cfg = loaded

		// Logs go to stderr so stdout carries only command output.
		slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagAPIURL, "api-url", "", "Hospital Directory API base URL (or set HOSPITAL_API_BASE_URL)")
	pf.StringVar(&flagDSN, "dsn", "", "Postgres connection string for import history (or set DATABASE_URL)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")
}

// applyFlags overrides environment configuration with explicit flags.
func applyFlags(c *config.Config) {
	if flagAPIURL != "" {
		c.HospitalAPI.BaseURL = strings.TrimRight(flagAPIURL, "/")
	}
	if flagDSN != "" {
		c.Database.URL = flagDSN
	}
	if flagLogLevel != "" {
		c.Logging.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		c.Logging.Format = flagLogFormat
	}
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}
