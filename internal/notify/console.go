package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// ConsoleNotifier prints alerts to the terminal, optionally ringing the bell.
type ConsoleNotifier struct {
	out          io.Writer
	bellEnabled  bool
	colorEnabled bool
	mu           sync.Mutex
}

// NewConsoleNotifier creates a console channel writing to out.
func NewConsoleNotifier(out io.Writer, bell, colorEnabled bool) *ConsoleNotifier {
	return &ConsoleNotifier{
		out:          out,
		bellEnabled:  bell,
		colorEnabled: colorEnabled,
	}
}

// Name returns the name of the notifier.
func (c *ConsoleNotifier) Name() string { return "console" }

// IsEnabled returns whether the notifier is enabled.
func (c *ConsoleNotifier) IsEnabled() bool { return c.out != nil }

// Send prints the notification.
func (c *ConsoleNotifier) Send(ctx context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := color.New(color.FgYellow, color.Bold)
	if !c.colorEnabled {
		title.DisableColor()
	}

	if c.bellEnabled {
		fmt.Fprint(c.out, "\a")
	}
	_, err := fmt.Fprintf(c.out, "\n%s [%s]\n%s\n",
		title.Sprint("🔔 "+n.Title), n.Timestamp.Format("15:04:05"), n.Message)
	return err
}
