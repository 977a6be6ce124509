package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-visualizer/internal/config"
	apperrors "stock-visualizer/internal/errors"
	"stock-visualizer/internal/export"
	"stock-visualizer/internal/models"
	"stock-visualizer/internal/store"
)

// oneShotTimeout bounds the single fetch pass of quote and export.
const oneShotTimeout = 60 * time.Second

// fetchOnce fetches every symbol once and builds a snapshot of those that
// succeeded, in argument order. Failed symbols are returned separately.
func fetchOnce(ctx context.Context, app *App, raw []string, days int) (models.MarketSnapshot, []string, error) {
	symbols := make([]models.Symbol, 0, len(raw))
	seen := make(map[models.Symbol]bool, len(raw))
	for _, r := range raw {
		sym, err := models.NormalizeSymbol(r)
		if err != nil {
			return models.MarketSnapshot{}, nil, err
		}
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}

	fetcher := app.newFetcher(app.Config.Poll)

	var (
		stocks []models.StockSnapshot
		failed []string
	)
	for _, sym := range symbols {
		snap, ok := fetcher.Fetch(ctx, sym, days)
		if !ok {
			failed = append(failed, sym.String())
			continue
		}
		stocks = append(stocks, snap)
	}
	return models.NewMarketSnapshot(stocks, time.Now(), 1), failed, nil
}

func historyDaysFlag(cmd *cobra.Command, app *App) (int, error) {
	if !cmd.Flags().Changed("days") {
		return app.Config.Poll.HistoryDays, nil
	}
	days, _ := cmd.Flags().GetInt("days")
	if err := config.ValidateHistoryDays(days); err != nil {
		return 0, err
	}
	return days, nil
}

type quoteJSON struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	FetchedAt time.Time `json:"fetched_at"`
	History   int       `json:"history_points"`
}

func newQuoteCmd(app *App) *cobra.Command {
	var chart bool

	cmd := &cobra.Command{
		Use:   "quote SYMBOL [SYMBOL...]",
		Short: "Fetch current prices once",
		Args:  cobra.MinimumNArgs(1),
		Example: `  stockviz quote AAPL MSFT
  stockviz quote AAPL --chart --days 90`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			days, err := historyDaysFlag(cmd, app)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), oneShotTimeout)
			defer cancel()

			snapshot, failed, err := fetchOnce(ctx, app, args, days)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				rows := make([]quoteJSON, 0, snapshot.Len())
				for _, s := range snapshot.Stocks() {
					rows = append(rows, quoteJSON{
						Symbol:    s.Symbol().String(),
						Price:     s.CurrentPrice(),
						FetchedAt: s.FetchedAt(),
						History:   s.HistoryLen(),
					})
				}
				return output.JSON(map[string]interface{}{"quotes": rows, "failed": failed})
			}

			display := NewDisplay(output.Writer(), output.ColorEnabled(), app.Config.UI.ChartWidth, app.Config.UI.TimeFormat)
			display.RenderPrices(snapshot)
			if chart {
				display.RenderCharts(snapshot)
			}
			for _, sym := range failed {
				output.Warning("%s: %s", sym, apperrors.ErrNotAvailable)
			}
			if snapshot.IsEmpty() {
				return apperrors.ErrNotAvailable
			}
			return nil
		},
	}

	cmd.Flags().Int("days", config.DefaultHistoryDays, "historical days to fetch")
	cmd.Flags().BoolVar(&chart, "chart", false, "also draw the history sparkline")

	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export SYMBOL [SYMBOL...]",
		Short: "Fetch history once and write it to CSV",
		Args:  cobra.MinimumNArgs(1),
		Example: `  stockviz export AAPL MSFT --days 90
  stockviz export AAPL --dir ./exports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			days, err := historyDaysFlag(cmd, app)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = app.Config.Export.Dir
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), oneShotTimeout)
			defer cancel()

			output.Info("Fetching %s...", strings.Join(args, ", "))
			snapshot, failed, err := fetchOnce(ctx, app, args, days)
			if err != nil {
				return err
			}
			for _, sym := range failed {
				output.Warning("%s: %s", sym, apperrors.ErrNotAvailable)
			}

			path, err := export.ExportFile(dir, snapshot, time.Now())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"path": path, "symbols": snapshot.Len(), "failed": failed})
			}
			output.Success("✓ Data exported to %s", path)
			return nil
		},
	}

	cmd.Flags().Int("days", config.DefaultHistoryDays, "historical days to export")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default: export.dir from config)")

	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Show archived closing prices",
		Long:  "Print closing prices recorded by the quote archive during earlier watch sessions.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			sym, err := models.NormalizeSymbol(args[0])
			if err != nil {
				return err
			}
			if limit <= 0 {
				return apperrors.NewValidationError("limit", limit, fmt.Errorf("limit must be greater than zero"))
			}

			archive, err := store.NewSQLiteArchive(app.Config.Archive.Path, app.Logger)
			if err != nil {
				return err
			}
			defer archive.Close()

			ctx := cmd.Context()
			points, err := archive.RecentQuotes(ctx, sym, limit)
			if err != nil {
				return err
			}
			last, hasLast, err := archive.LastPrice(ctx, sym)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				result := map[string]interface{}{"symbol": sym.String(), "closes": points}
				if hasLast {
					result["last_price"] = last
				}
				return output.JSON(result)
			}

			if len(points) == 0 {
				output.Dim("No archived history for %s", sym)
				return nil
			}

			table := NewTable(output, "Date", "Close")
			closes := make([]float64, 0, len(points))
			for _, p := range points {
				table.AddRow(p.Date.Format(export.DateLayout), FormatPrice(p.Close))
				closes = append(closes, p.Close)
			}
			table.Render()

			lo, hi := MinMax(closes)
			output.Println()
			output.Printf("%s  %s\n", Sparkline(closes, app.Config.UI.ChartWidth),
				output.Faint(fmt.Sprintf("min %s  max %s", FormatPrice(lo), FormatPrice(hi))))
			if hasLast {
				output.Dim("Last observed price %s at %s (cycle %d)",
					FormatPrice(last.Price), FormatTime(last.FetchedAt, app.Config.UI.TimeFormat), last.Cycle)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 30, "number of most recent closes")

	return cmd
}
