package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/cryptodash/api"
	"github.com/seenimoa/cryptodash/internal/metrics"
	"github.com/seenimoa/cryptodash/internal/table"
	"github.com/seenimoa/cryptodash/pkg/models"
	"github.com/seenimoa/cryptodash/pkg/utils"
)

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the market and start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openFavorites(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		svc := newService(cfg, store, logger)
		srv := api.NewServer(cfg, svc, logger)
		srv.SetVersion(version)

		if err := svc.Start(ctx); err != nil {
			return err
		}
		defer svc.Stop()

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, addr)
		})
		return g.Wait()
	},
}

// --- Snapshot Command ---

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch the asset listing once and print it as a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		sortFlag, _ := cmd.Flags().GetString("sort")
		desc, _ := cmd.Flags().GetBool("desc")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		favOnly, _ := cmd.Flags().GetBool("favorites")

		key, err := table.ParseSortKey(sortFlag)
		if err != nil {
			return err
		}
		sortCfg := table.SortConfig{Key: key, Direction: table.Ascending}
		if desc {
			sortCfg.Direction = table.Descending
		}

		store, err := openFavorites(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		fav := store.Load(cmd.Context())

		svc := newService(cfg, store, logger)
		if err := svc.RefreshAssets(cmd.Context()); err != nil {
			return fmt.Errorf("failed to fetch assets: %w", err)
		}

		snap := svc.Snapshot()
		rows := table.View(snap.Assets, fav, table.Options{
			Query:         search,
			Sort:          sortCfg,
			FavoritesOnly: favOnly,
			Limit:         limit,
		})
		printSummary(svc.Summary())
		printRows(rows)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().String("sort", "marketCap", "sort column (rank, name, symbol, price, marketCap, volume, change1h, change24h, change7d, supply)")
	snapshotCmd.Flags().Bool("desc", true, "sort descending")
	snapshotCmd.Flags().String("search", "", "case-insensitive name/symbol filter")
	snapshotCmd.Flags().Int("limit", 20, "maximum rows (0 for all)")
	snapshotCmd.Flags().Bool("favorites", false, "show favorites only")
}

func printSummary(s metrics.Summary) {
	fmt.Printf("Market Cap: $%.2fT   Volume 24h: $%sB   BTC: %s%%   ETH: %s%%   BTC 24h: %s\n\n",
		s.TotalMarketCap, s.TotalVolume, s.BTCDominance, s.ETHDominance, directionLabel(s.MarketDirection))
}

func printRows(rows []table.Row) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "★\t#\tSymbol\tName\tPrice\tMarket Cap\tVolume 24h\t1h %\t24h %\t7d %\t")
	for _, r := range rows {
		star := ""
		if r.Favorite {
			star = "★"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			star, r.Rank, r.Symbol, r.Name,
			format(r.PriceUsd, utils.FormatUSD), format(r.MarketCapUsd, utils.FormatUSDCompact),
			format(r.VolumeUsd24Hr, utils.FormatUSDCompact), format(r.ChangePercent1Hr, utils.FormatPct),
			format(r.ChangePercent24Hr, utils.FormatPct), format(r.ChangePercent7d, utils.FormatPct))
	}
	w.Flush()
}

// format renders a decimal string with f, or "-" when it does not parse.
func format(s string, f func(decimal.Decimal) string) string {
	d, ok := models.ParseDecimal(s)
	if !ok {
		return "-"
	}
	return f(d)
}

func directionLabel(d models.Direction) string {
	switch d {
	case models.DirectionUp:
		return "▲ up"
	case models.DirectionDown:
		return "▼ down"
	default:
		return "neutral"
	}
}

// --- Favorites Command ---

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List or toggle favorite assets",
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite assets",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFavorites(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		store.Load(cmd.Context())

		ids := store.IDs()
		if len(ids) == 0 {
			fmt.Println("No favorites yet.")
			return nil
		}
		fmt.Println(strings.Join(ids, "\n"))
		return nil
	},
}

var favoritesToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Toggle an asset's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFavorites(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		store.Load(ctx)
		if store.Toggle(ctx, args[0]) {
			fmt.Printf("★ %s added to favorites\n", args[0])
		} else {
			fmt.Printf("☆ %s removed from favorites\n", args[0])
		}
		return nil
	},
}

func init() {
	favoritesCmd.AddCommand(favoritesListCmd)
	favoritesCmd.AddCommand(favoritesToggleCmd)
}
