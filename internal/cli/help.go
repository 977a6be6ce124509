package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		Long:  "Display examples of common stock visualizer workflows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Common Workflow Examples")
			output.Println()

			examples := []struct {
				title    string
				commands []string
			}{
				{
					title: "Watch a Few Stocks",
					commands: []string{
						"stockviz watch AAPL MSFT GOOG    # Live prices, charts and alerts",
						"stockviz watch AAPL --interval 30 # Refresh every 30 seconds",
						"stockviz watch AAPL --days 90     # Chart 90 trading days",
					},
				},
				{
					title: "Price Alerts",
					commands: []string{
						"stockviz watch --alert AAPL:above:200 --alert TSLA:below:150",
						"alert AAPL 200 above              # Inside a watch session",
						"clear AAPL                        # Remove the alert",
					},
				},
				{
					title: "One-Shot Quotes",
					commands: []string{
						"stockviz quote AAPL MSFT          # Current prices",
						"stockviz quote AAPL --chart       # With history sparkline",
						"stockviz quote AAPL --json        # Machine-readable",
					},
				},
				{
					title: "Export Data",
					commands: []string{
						"stockviz export AAPL MSFT --days 90 --dir ./exports",
						"export ./exports                  # Inside a watch session",
					},
				},
				{
					title: "Archive and Live Feed",
					commands: []string{
						"stockviz history AAPL --limit 60  # Closes saved by earlier sessions",
						"stockviz watch AAPL --feed        # Serve ws://127.0.0.1:8765/ws",
					},
				},
			}

			for _, ex := range examples {
				output.Bold(ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.Faint(strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}

			return nil
		},
	}
}
