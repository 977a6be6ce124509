package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stock-visualizer/internal/engine"
	apperrors "stock-visualizer/internal/errors"
	"stock-visualizer/internal/export"
	"stock-visualizer/internal/models"
	"stock-visualizer/internal/watchlist"
)

// Controller is the engine surface the interactive session drives.
type Controller interface {
	Refresh()
	State() engine.State
	Stats() engine.Stats
	CurrentSnapshot() models.MarketSnapshot
	CurrentAlerts() []models.AlertStatus
	PollInterval() time.Duration
	HistoryDays() int
	SetPollIntervalFromInput(raw string) error
	SetHistoryDaysFromInput(raw string) error
}

// Session reads commands from the user and applies them to the watchlist
// and engine. All watchlist mutation happens on the session goroutine.
type Session struct {
	watchlist *watchlist.Watchlist
	engine    Controller
	display   *Display
	out       *Output
	exportDir string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSession creates an interactive session.
func NewSession(wl *watchlist.Watchlist, ctrl Controller, display *Display, out *Output, exportDir string, logger zerolog.Logger) *Session {
	if exportDir == "" {
		exportDir = "."
	}
	return &Session{
		watchlist: wl,
		engine:    ctrl,
		display:   display,
		out:       out,
		exportDir: exportDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Run reads lines from in until quit, EOF or cancellation of ctx.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			quit, err := s.Execute(line)
			if err != nil {
				s.out.Error("%s", capitalize(apperrors.Reason(err)))
			}
			if quit {
				return nil
			}
			s.prompt()
		}
	}
}

func (s *Session) prompt() {
	s.out.Printf("> ")
}

// Execute runs a single command line. It reports whether the session should end.
func (s *Session) Execute(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		s.help()
		return false, nil
	case "add":
		return false, s.add(args)
	case "remove", "rm":
		return false, s.remove(args)
	case "alert":
		return false, s.alert(args)
	case "clear":
		return false, s.clear(args)
	case "list", "ls":
		s.list()
		return false, nil
	case "prices", "show":
		snap := s.engine.CurrentSnapshot()
		s.display.RenderPrices(snap)
		s.display.RenderCharts(snap)
		return false, nil
	case "alerts":
		s.display.RenderAlerts(s.engine.CurrentAlerts())
		return false, nil
	case "interval":
		return false, s.interval(args)
	case "days":
		return false, s.days(args)
	case "refresh":
		s.engine.Refresh()
		s.out.Info("Refreshing...")
		return false, nil
	case "export":
		return false, s.export(args)
	case "status":
		s.status()
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
}

func (s *Session) add(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: add SYMBOL [SYMBOL...]")
	}
	added := 0
	var firstErr error
	for _, raw := range args {
		sym, err := s.watchlist.AddSymbol(raw)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.out.Warning("%s: %s", strings.ToUpper(raw), apperrors.Reason(err))
			continue
		}
		added++
		s.out.Success("✓ Added %s", sym)
	}
	if added > 0 {
		s.engine.Refresh()
	}
	if added == 0 {
		return firstErr
	}
	return nil
}

func (s *Session) remove(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: remove SYMBOL")
	}
	for _, raw := range args {
		if s.watchlist.RemoveSymbol(raw) {
			s.out.Success("✓ Removed %s", strings.ToUpper(strings.TrimSpace(raw)))
		} else {
			s.out.Dim("%s is not tracked", strings.ToUpper(strings.TrimSpace(raw)))
		}
	}
	return nil
}

func (s *Session) alert(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: alert SYMBOL PRICE above|below")
	}
	rule, err := s.watchlist.SetAlertFromInput(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	s.out.Success("✓ Alert set: %s %s %s", rule.Symbol, rule.Direction, FormatPrice(rule.Threshold))
	return nil
}

func (s *Session) clear(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: clear SYMBOL")
	}
	if s.watchlist.ClearAlert(args[0]) {
		s.out.Success("✓ Alert cleared for %s", strings.ToUpper(strings.TrimSpace(args[0])))
	} else {
		s.out.Dim("No alert set for %s", strings.ToUpper(strings.TrimSpace(args[0])))
	}
	return nil
}

func (s *Session) list() {
	state := s.watchlist.Snapshot()
	if state.Len() == 0 {
		s.out.Dim("Watchlist is empty. Use 'add SYMBOL' to track a stock.")
		return
	}
	rules := state.Rules()
	table := NewTable(s.out, "Symbol", "Alert")
	for _, sym := range state.Symbols() {
		alert := "-"
		if r, ok := rules[sym]; ok {
			alert = fmt.Sprintf("%s %s", r.Direction, FormatPrice(r.Threshold))
		}
		table.AddRow(sym.String(), alert)
	}
	table.Render()
}

func (s *Session) interval(args []string) error {
	if len(args) == 0 {
		s.out.Printf("Update interval: %s\n", s.engine.PollInterval())
		return nil
	}
	if err := s.engine.SetPollIntervalFromInput(args[0]); err != nil {
		return err
	}
	s.out.Success("✓ Update interval set to %s", s.engine.PollInterval())
	return nil
}

func (s *Session) days(args []string) error {
	if len(args) == 0 {
		s.out.Printf("Historical days: %d\n", s.engine.HistoryDays())
		return nil
	}
	if err := s.engine.SetHistoryDaysFromInput(args[0]); err != nil {
		return err
	}
	s.out.Success("✓ Historical days set to %d", s.engine.HistoryDays())
	s.engine.Refresh()
	return nil
}

func (s *Session) export(args []string) error {
	dir := s.exportDir
	if len(args) > 0 {
		dir = args[0]
	}
	path, err := export.ExportFile(dir, s.engine.CurrentSnapshot(), s.now())
	if err != nil {
		return err
	}
	s.logger.Info().Str("path", path).Msg("Exported snapshot")
	s.out.Success("✓ Data exported to %s", path)
	return nil
}

func (s *Session) status() {
	st := s.engine.Stats()
	s.out.Bold("Engine Status")
	s.out.Printf("  State:           %s\n", s.engine.State())
	s.out.Printf("  Tracked:         %d symbols\n", s.watchlist.Len())
	s.out.Printf("  Interval:        %s\n", s.engine.PollInterval())
	s.out.Printf("  History days:    %d\n", s.engine.HistoryDays())
	s.out.Printf("  Cycles:          %d\n", st.Cycles)
	s.out.Printf("  Last cycle:      %s (%s)\n", FormatTime(st.LastCycleAt, time.TimeOnly), FormatDuration(st.LastDuration))
	s.out.Printf("  Last fetch:      %d ok, %d failed\n", st.LastFetched, st.LastFailed)
	s.out.Printf("  Alerts emitted:  %d\n", st.AlertsEmitted)
}

func (s *Session) help() {
	s.out.Bold("Commands")
	commands := []struct{ cmd, desc string }{
		{"add SYM [SYM...]", "Track one or more symbols"},
		{"remove SYM", "Stop tracking a symbol and drop its alert"},
		{"alert SYM PRICE above|below", "Set or replace a price alert"},
		{"clear SYM", "Remove the alert for a symbol"},
		{"list", "Show tracked symbols and alerts"},
		{"prices", "Show the latest prices and charts"},
		{"alerts", "Show alert status"},
		{"interval [SECONDS]", "Show or set the update interval (min 10)"},
		{"days [N]", "Show or set historical days"},
		{"refresh", "Fetch now"},
		{"export [DIR]", "Write the current data to CSV"},
		{"status", "Show engine status"},
		{"quit", "Exit"},
	}
	for _, c := range commands {
		s.out.Printf("  %s %s\n", PadRight(c.cmd, 30), s.out.Faint(c.desc))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseAlertFlag parses "SYM:above:150" as given to --alert.
func ParseAlertFlag(raw string) (symbol, price, direction string, err error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return "", "", "", apperrors.NewValidationError("alert", raw,
			fmt.Errorf("alert must look like SYMBOL:above|below:PRICE"))
	}
	return parts[0], parts[2], parts[1], nil
}
