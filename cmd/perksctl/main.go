// Command perksctl inspects and updates credit tracking from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"perks/internal/backend"
	"perks/internal/cli"
	"perks/internal/config"
	"perks/internal/log"
	"perks/internal/services"
)

var rootCmd = &cobra.Command{
	Use:   "perksctl",
	Short: "Track card statement credits from the command line",
	Long: `perksctl expands card credits into dated periods, shows which ones are
used, active or expired, records usage and exports calendar feeds.

Configuration is read from the environment (and .env), the same way the
server reads it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
	},
}

var (
	flagUser    string
	flagYear    int
	flagCatalog string
	flagJSON    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "user ID (default: first configured user)")
	rootCmd.PersistentFlags().IntVarP(&flagYear, "year", "y", 0, "calendar year (default: current year)")
	rootCmd.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "catalog TOML file (default: CATALOG_PATH or the embedded catalog)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print JSON instead of a table")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// session holds what a command needs to talk to the configured backend.
type session struct {
	cfg     *config.Config
	tracker *services.TrackerService
	backend *backend.Result
	logger  *log.Logger
}

// openSession loads configuration, the backend and the catalog. Logging goes
// to stderr so stdout stays parseable.
func openSession(ctx context.Context) (*session, error) {
	level := slog.LevelWarn
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = log.ParseLevel(v)
	}
	logger := log.New(log.Config{Level: level, Output: os.Stderr})

	cfg := config.Load()
	if flagCatalog != "" {
		cfg.CatalogPath = flagCatalog
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	// Local writes are mirrored by the worker's polling.
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg.WithoutEvents())
	if err != nil {
		return nil, err
	}

	tracker, err := cli.NewTracker(cfg, result.Backend, nil, logger)
	if err != nil {
		_ = result.Close()
		return nil, err
	}
	return &session{cfg: cfg, tracker: tracker, backend: result, logger: logger}, nil
}

func (s *session) Close() error {
	return s.backend.Close()
}

// user resolves --user against the catalog.
func (s *session) user() (string, error) {
	userID := flagUser
	if userID == "" {
		userID = s.tracker.Catalog().DefaultUser()
	}
	if _, err := s.tracker.Catalog().User(userID); err != nil {
		return "", err
	}
	return userID, nil
}

func (s *session) year() int {
	if flagYear != 0 {
		return flagYear
	}
	return s.tracker.Today().Year()
}

// withSession runs fn with an open session and closes it afterwards.
func withSession(fn func(ctx context.Context, cmd *cobra.Command, args []string, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				fmt.Fprintln(os.Stderr, "close backend:", err)
			}
		}()
		return fn(ctx, cmd, args, s)
	}
}
