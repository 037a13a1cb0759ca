package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/dbcheck/internal/config"
	"github.com/kalambet/dbcheck/internal/report"
	"github.com/kalambet/dbcheck/internal/storage"
)

var version = "dev"

var (
	noColor     bool
	verbose     bool
	dbPath      string
	profileName string
)

var rootCmd = &cobra.Command{
	Use:   "dbcheck",
	Short: "Inspect the Karl SQLite database",
	Long: `Inspect the Karl SQLite database read-only and print a report of
container states, interaction data and table schemas.

Examples:
  dbcheck
  dbcheck --db ./karl_database.db --profile users
  dbcheck tables
  dbcheck serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg, true)
		opts, err := reportOptions(cfg)
		if err != nil {
			return err
		}

		text, err := report.Run(cmd.Context(), cfg.Database.Path, opts)
		if err != nil {
			return openError(cfg.Database.Path, err)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database (overrides database.path)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", fmt.Sprintf("report profile: %s", strings.Join(report.Profiles(), ", ")))
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(tablesCmd, serveCmd, mcpCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var missing *missingDatabaseError
		if errors.As(err, &missing) {
			fmt.Fprintln(os.Stderr, missing.Error())
		} else {
			printError("%v", err)
		}
		os.Exit(1)
	}
}

// missingDatabaseError is reported verbatim, without the usual error styling.
type missingDatabaseError struct {
	path string
	err  error
}

func (e *missingDatabaseError) Error() string {
	return fmt.Sprintf("Database file '%s' not found!", e.path)
}

func (e *missingDatabaseError) Unwrap() error { return e.err }

func openError(path string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &missingDatabaseError{path: path, err: err}
	}
	return err
}

// loadConfig layers --db and --profile over the config file and environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if f := cmd.Flags().Lookup("db"); f != nil && f.Changed {
		cfg.Database.Path = dbPath
	}
	if f := cmd.Flags().Lookup("profile"); f != nil && f.Changed {
		cfg.Report.Profile = profileName
	}
	return cfg, nil
}

// setupLogging sends structured logs to stderr. One-shot commands stay quiet
// below warnings unless --verbose is set.
func setupLogging(cfg config.Config, quiet bool) {
	level := slog.LevelInfo
	switch {
	case verbose || strings.EqualFold(cfg.Log.Level, "debug"):
		level = slog.LevelDebug
	case quiet || strings.EqualFold(cfg.Log.Level, "warn"):
		level = slog.LevelWarn
	case strings.EqualFold(cfg.Log.Level, "error"):
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func reportOptions(cfg config.Config) (report.Options, error) {
	opts, err := report.ProfileOptions(cfg.Report.Profile)
	if err != nil {
		return report.Options{}, err
	}
	opts.TopTypesLimit = cfg.Report.TopTypes
	opts.RecentLimit = cfg.Report.RecentLimit
	opts.PreviewBytes = cfg.Report.PreviewBytes
	return opts, nil
}
