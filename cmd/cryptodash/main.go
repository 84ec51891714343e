// cryptodash is a cryptocurrency market dashboard backend.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/cryptodash/internal/config"
	"github.com/seenimoa/cryptodash/internal/datasource"
	"github.com/seenimoa/cryptodash/internal/favorites"
	"github.com/seenimoa/cryptodash/internal/market"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by PersistentPreRunE.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cryptodash",
	Short: "cryptodash: live crypto market snapshot, history and favorites",
	Long: `cryptodash polls the CoinCap API for the current asset listing,
keeps a 60-day daily price history for a reference asset, derives market
aggregates and persists a set of favorite assets. It serves this data
over HTTP and WebSocket or prints it from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		levelOverride, _ := cmd.Flags().GetString("log-level")
		logger, err = newLogger(cfg.Logging, levelOverride)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(favoritesCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cryptodash %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and storage status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  cryptodash: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Market API:    %s\n", cfg.Market.BaseURL)
		fmt.Printf("    Poll Interval: %s\n", cfg.Market.PollInterval())
		fmt.Printf("    History:       %s %s, %d days, refreshed every %s\n",
			cfg.Market.HistoryAsset, cfg.Market.HistoryInterval,
			cfg.Market.HistoryWindowDays, cfg.Market.HistoryTTL())
		fmt.Printf("    Storage:       %s (%s)\n", cfg.Storage.Backend, storagePath(cfg.Storage))
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)

		key := cfg.Market.KeyStatus()
		keyLine := "❌ not set"
		if key.IsSet {
			keyLine = fmt.Sprintf("✅ set (%s: %s)", key.Source, key.Masked)
		}
		fmt.Printf("    API Key:       %s\n", keyLine)
		fmt.Println()

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- Wiring ---

// newLogger builds the slog logger selected by the logging config.
// A non-empty override replaces the configured level.
func newLogger(c config.LoggingConfig, override string) (*slog.Logger, error) {
	level := c.Level
	if override != "" {
		level = override
	}
	if level == "" {
		level = "info"
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.EqualFold(c.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h), nil
}

// storagePath resolves the favorites location. A sqlite backend pointed at
// a directory gets a database file inside it.
func storagePath(s config.StorageConfig) string {
	if s.Backend == "sqlite" && filepath.Ext(s.Path) == "" {
		return filepath.Join(s.Path, "cryptodash.db")
	}
	return s.Path
}

func openFavorites(c *config.Config, logger *slog.Logger) (*favorites.Store, error) {
	backend, err := favorites.Open(c.Storage.Backend, storagePath(c.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to open favorites storage: %w", err)
	}
	return favorites.NewStore(backend, c.Storage.Key, logger), nil
}

func newSource(c *config.Config) *datasource.CoinCap {
	return datasource.NewCoinCap(datasource.CoinCapConfig{
		BaseURL:    c.Market.BaseURL,
		APIKey:     c.Market.APIKey,
		Timeout:    c.Market.HTTPTimeout(),
		RatePerSec: c.Market.RateLimitPerSec,
	})
}

func newService(c *config.Config, store *favorites.Store, logger *slog.Logger) *market.Service {
	return market.NewService(newSource(c), store, market.Config{
		PollInterval:    c.Market.PollInterval(),
		HistoryAsset:    c.Market.HistoryAsset,
		HistoryInterval: c.Market.HistoryInterval,
		HistoryWindow:   c.Market.HistoryWindow(),
		HistoryTTL:      c.Market.HistoryTTL(),
	}, market.WithLogger(logger))
}
