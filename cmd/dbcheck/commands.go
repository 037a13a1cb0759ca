package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/dbcheck/internal/api"
	"github.com/kalambet/dbcheck/internal/config"
	"github.com/kalambet/dbcheck/internal/report"
)

// --- tables ---

var tablesJSON bool

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List every table with its columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg, true)

		schemas, err := report.Describe(cmd.Context(), cfg.Database.Path)
		if err != nil {
			return openError(cfg.Database.Path, err)
		}

		out := cmd.OutOrStdout()
		if tablesJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(schemas)
		}

		if len(schemas) == 0 {
			fmt.Fprintln(out, "No tables found")
			return nil
		}
		for _, s := range schemas {
			fmt.Fprintln(out, colorize(colorBold, s.Name))
			for _, c := range s.Columns {
				fmt.Fprintf(out, "  %s (%s)\n", c.Name, c.Type)
			}
		}
		return nil
	},
}

func init() {
	tablesCmd.Flags().BoolVar(&tablesJSON, "json", false, "print the schema as JSON")
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reports over HTTP on localhost",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg, false)
		deps, err := apiDeps(cfg)
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.Database.Path); err != nil {
			printWarning("database %s is not readable yet: %v", cfg.Database.Path, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", addr, err)
		}

		printStatus("Database", "%s", cfg.Database.Path)
		printStatus("Profile", "%s", cfg.Report.Profile)
		printStatus("Auth", "%s", authStatus(cfg))
		printStep("dbcheck listening on %s", ln.Addr())

		return serveHTTP(ctx, netutil.LimitListener(ln, cfg.Server.MaxConns), api.NewHandler(deps))
	},
}

// serveHTTP runs h on ln until ctx is cancelled, then shuts down gracefully.
func serveHTTP(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		printStep("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func authStatus(cfg config.Config) string {
	if cfg.Server.Token == "" {
		return "disabled"
	}
	return "bearer token"
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg, false)
		deps, err := apiDeps(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps, version))
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	},
}

func apiDeps(cfg config.Config) (api.Deps, error) {
	opts, err := reportOptions(cfg)
	if err != nil {
		return api.Deps{}, err
	}
	return api.Deps{
		DatabasePath: cfg.Database.Path,
		Options:      opts,
		Token:        cfg.Server.Token,
	}, nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}

		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dbcheck version %s\n", version)
	},
}
