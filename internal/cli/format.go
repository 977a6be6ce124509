package cli

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// sparkBlocks are ordered from lowest to highest.
var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// FormatPrice formats a price with two decimals.
func FormatPrice(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f", price)
}

// FormatTime formats t with layout, or "-" for the zero time.
func FormatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	if layout == "" {
		layout = time.DateTime
	}
	return t.Local().Format(layout)
}

// FormatDuration renders a duration compactly, e.g. "1m30s" or "250ms".
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(time.Second).String()
	}
}

// Sparkline renders values as a single line of block characters at most
// width runes long. When there are more values than width, values are
// sampled evenly so the first and last are always kept.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	sampled := values
	if len(values) > width {
		sampled = make([]float64, width)
		if width == 1 {
			sampled[0] = values[len(values)-1]
		} else {
			step := float64(len(values)-1) / float64(width-1)
			for i := range sampled {
				sampled[i] = values[int(math.Round(float64(i)*step))]
			}
		}
	}

	lo, hi := MinMax(sampled)
	span := hi - lo

	var b strings.Builder
	for _, v := range sampled {
		idx := len(sparkBlocks) / 2
		if span > 0 {
			idx = int((v - lo) / span * float64(len(sparkBlocks)-1))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// MinMax returns the smallest and largest of values.
func MinMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// TruncateString truncates a string to maxLen runes with ellipsis.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// PadRight pads a string to the right to reach the specified display width.
func PadRight(s string, length int) string {
	if w := displayWidth(s); w < length {
		return s + strings.Repeat(" ", length-w)
	}
	return s
}
