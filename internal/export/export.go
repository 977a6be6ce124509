// Package export writes snapshot history to CSV.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "stock-visualizer/internal/errors"
	"stock-visualizer/internal/models"
)

// DateLayout is the layout of the Date column.
const DateLayout = "2006-01-02"

// Row is one exported history point.
type Row struct {
	Date   string  `csv:"Date"`
	Close  float64 `csv:"Close"`
	Symbol string  `csv:"Symbol"`
}

// Rows flattens every history point of every snapshot entry, in tracked order.
func Rows(snapshot models.MarketSnapshot) ([]Row, error) {
	if snapshot.IsEmpty() {
		return nil, apperrors.ErrNoData
	}

	var rows []Row
	for _, stock := range snapshot.Stocks() {
		for _, p := range stock.History() {
			rows = append(rows, Row{
				Date:   p.Date.Format(DateLayout),
				Close:  p.Close,
				Symbol: stock.Symbol().String(),
			})
		}
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrNoHistory
	}
	return rows, nil
}

// WriteCSV writes the snapshot history to w with a header row.
func WriteCSV(w io.Writer, snapshot models.MarketSnapshot) error {
	rows, err := Rows(snapshot)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// FileName returns the export file name for a given time.
func FileName(now time.Time) string {
	return "stock_data_export_" + now.Format("20060102_150405") + ".csv"
}

// ExportFile writes the snapshot to a timestamped CSV in dir and returns its path.
func ExportFile(dir string, snapshot models.MarketSnapshot, now time.Time) (string, error) {
	if _, err := Rows(snapshot); err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}

	path := filepath.Join(dir, FileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}

	if err := WriteCSV(f, snapshot); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing export file: %w", err)
	}
	return path, nil
}
