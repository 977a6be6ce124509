package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-visualizer/internal/config"
	"stock-visualizer/internal/engine"
	"stock-visualizer/internal/feed"
	"stock-visualizer/internal/models"
	"stock-visualizer/internal/notify"
	"stock-visualizer/internal/store"
	"stock-visualizer/internal/stream"
	"stock-visualizer/internal/watchlist"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		interval int
		days     int
		alerts   []string
		feedOn   bool
	)

	cmd := &cobra.Command{
		Use:   "watch [symbols...]",
		Short: "Track symbols with live prices, charts and alerts",
		Long: `Start the polling engine and an interactive session.

Prices and history refresh every interval. Type 'help' in the session
for the list of commands.`,
		Example: `  stockviz watch AAPL MSFT
  stockviz watch AAPL --interval 30 --days 60
  stockviz watch AAPL --alert AAPL:above:200 --feed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := *app.Config

			if cmd.Flags().Changed("interval") {
				if err := config.ValidatePollInterval(interval); err != nil {
					return err
				}
				cfg.Poll.IntervalSeconds = interval
			}
			if cmd.Flags().Changed("days") {
				if err := config.ValidateHistoryDays(days); err != nil {
					return err
				}
				cfg.Poll.HistoryDays = days
			}
			if feedOn {
				cfg.Feed.Enabled = true
			}

			wl := watchlist.New()
			for _, raw := range args {
				if _, err := wl.AddSymbol(raw); err != nil {
					output.Warning("%s: %v", strings.ToUpper(raw), err)
				}
			}
			for _, raw := range alerts {
				sym, price, dir, err := ParseAlertFlag(raw)
				if err != nil {
					return err
				}
				if !wl.Contains(sym) {
					if _, err := wl.AddSymbol(sym); err != nil {
						return err
					}
				}
				if _, err := wl.SetAlertFromInput(sym, price, dir); err != nil {
					return err
				}
			}

			return runWatch(cmd.Context(), app, &cfg, wl, output, cmd.InOrStdin())
		},
	}

	cmd.Flags().IntVar(&interval, "interval", config.DefaultPollIntervalSeconds, "update interval in seconds (min 10)")
	cmd.Flags().IntVar(&days, "days", config.DefaultHistoryDays, "historical days to chart")
	cmd.Flags().StringArrayVar(&alerts, "alert", nil, "price alert as SYMBOL:above|below:PRICE (repeatable)")
	cmd.Flags().BoolVar(&feedOn, "feed", false, "serve the live websocket feed")

	return cmd
}

// watchRuntime is the set of components started for a watch session.
type watchRuntime struct {
	hub     *stream.Hub
	engine  *engine.Engine
	display *Display
	archive *store.SQLiteArchive
	feed    *feed.Server
	logger  zerolog.Logger
}

func newWatchRuntime(app *App, cfg *config.Config, wl *watchlist.Watchlist, out *Output) *watchRuntime {
	logger := app.Logger
	rt := &watchRuntime{logger: logger}

	rt.hub = stream.NewHub(logger)
	rt.display = NewDisplay(out.Writer(), out.ColorEnabled(), cfg.UI.ChartWidth, cfg.UI.TimeFormat)
	rt.hub.RegisterConsumer(rt.display)
	rt.hub.RegisterConsumer(notify.NewMultiNotifier(cfg.Notifications, out.ColorEnabled(), out.Writer(), logger))

	if cfg.Archive.Enabled {
		archive, err := store.NewSQLiteArchive(cfg.Archive.Path, logger)
		if err != nil {
			out.Warning("Quote archive unavailable: %v", err)
		} else {
			rt.archive = archive
			rt.hub.RegisterConsumer(archive)
		}
	}

	if cfg.Feed.Enabled {
		feedCfg := feed.DefaultServerConfig()
		if cfg.Feed.Addr != "" {
			feedCfg.Addr = cfg.Feed.Addr
		}
		rt.feed = feed.NewServer(feedCfg, logger)
		rt.hub.RegisterConsumer(rt.feed)
	}

	fetcher := app.newFetcher(cfg.Poll)
	rt.engine = engine.New(engine.Config{
		IntervalSeconds: cfg.Poll.IntervalSeconds,
		HistoryDays:     cfg.Poll.HistoryDays,
		Concurrency:     cfg.Poll.Concurrency,
		ShutdownTimeout: engine.DefaultShutdownTimeout,
	}, fetcher, wl, rt.hub, logger)

	return rt
}

func (rt *watchRuntime) start(ctx context.Context, out *Output) error {
	if err := rt.hub.Start(ctx); err != nil {
		return err
	}
	if rt.feed != nil {
		if err := rt.feed.Start(ctx); err != nil {
			out.Warning("Live feed unavailable: %v", err)
			rt.feed = nil
		} else {
			out.Info("Live feed on ws://%s/ws", rt.feed.Addr())
		}
	}
	return rt.engine.Start(ctx)
}

// stop shuts components down in dependency order: the engine first so no
// more events are published, then the hub so consumers drain.
func (rt *watchRuntime) stop() {
	if err := rt.engine.Stop(context.Background()); err != nil {
		rt.logger.Warn().Err(err).Msg("Engine stop")
	}
	rt.hub.Stop()
	if rt.feed != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rt.feed.Stop(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("Feed stop")
		}
		cancel()
	}
	if rt.archive != nil {
		if err := rt.archive.Close(); err != nil {
			rt.logger.Warn().Err(err).Msg("Archive close")
		}
	}
}

func runWatch(ctx context.Context, app *App, cfg *config.Config, wl *watchlist.Watchlist, output *Output, in io.Reader) error {
	out := NewWriterOutput(SyncWriter(output.Writer()), output.ColorEnabled())
	rt := newWatchRuntime(app, cfg, wl, out)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := rt.start(ctx, out); err != nil {
		rt.stop()
		return err
	}
	defer rt.stop()

	out.Bold("Stock Visualizer")
	out.Dim("Tracking %s. Type 'help' for commands.", describeSymbols(wl.Symbols()))

	session := NewSession(wl, rt.engine, rt.display, out, cfg.Export.Dir, app.Logger)
	return session.Run(ctx, in)
}

func describeSymbols(symbols []models.Symbol) string {
	if len(symbols) == 0 {
		return "no symbols yet"
	}
	return strings.Join(models.SymbolsToStrings(symbols), ", ")
}
