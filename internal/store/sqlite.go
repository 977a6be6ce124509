package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	apperrors "stock-visualizer/internal/errors"
	"stock-visualizer/internal/logging"
	"stock-visualizer/internal/models"
)

// DefaultSaveTimeout bounds one snapshot write from the hub consumer.
const DefaultSaveTimeout = 5 * time.Second

// SQLiteArchive implements QuoteArchive using SQLite.
type SQLiteArchive struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteArchive opens (or creates) the archive at dbPath.
func NewSQLiteArchive(dbPath string, logger zerolog.Logger) (*SQLiteArchive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create database dir: %v", apperrors.ErrDatabaseError, err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", apperrors.ErrDatabaseError, err)
	}

	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	a := &SQLiteArchive{
		db:     db,
		logger: logging.WithComponent(logger, "archive"),
	}

	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %v", apperrors.ErrDatabaseError, err)
	}

	return a, nil
}

func (a *SQLiteArchive) initSchema() error {
	schema := `
	-- Daily closes, one row per symbol per trading day
	CREATE TABLE IF NOT EXISTS quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		date DATETIME NOT NULL,
		close REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, date)
	);

	-- Current prices observed by poll cycles
	CREATE TABLE IF NOT EXISTS prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		price REAL NOT NULL,
		cycle INTEGER NOT NULL,
		fetched_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quotes_symbol_date ON quotes(symbol, date);
	CREATE INDEX IF NOT EXISTS idx_prices_symbol_fetched ON prices(symbol, fetched_at);
	`

	_, err := a.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

// SaveQuotes upserts daily closes for symbol.
func (a *SQLiteArchive) SaveQuotes(ctx context.Context, symbol models.Symbol, points []models.QuotePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertQuotes(ctx, tx, symbol, points); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveSnapshot archives every entry of a published snapshot: its history
// and its current price, in one transaction.
func (a *SQLiteArchive) SaveSnapshot(ctx context.Context, snapshot models.MarketSnapshot) error {
	if snapshot.IsEmpty() {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	priceStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO prices (symbol, price, cycle, fetched_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer priceStmt.Close()

	for _, stock := range snapshot.Stocks() {
		if err := insertQuotes(ctx, tx, stock.Symbol(), stock.History()); err != nil {
			return err
		}
		if _, err := priceStmt.ExecContext(ctx, stock.Symbol().String(), stock.CurrentPrice(), snapshot.Cycle(), stock.FetchedAt().UTC()); err != nil {
			return fmt.Errorf("failed to insert price: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertQuotes(ctx context.Context, tx *sql.Tx, symbol models.Symbol, points []models.QuotePoint) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO quotes (symbol, date, close)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, symbol.String(), dayKey(p.Date), p.Close); err != nil {
			return fmt.Errorf("failed to insert quote: %w", err)
		}
	}
	return nil
}

// GetQuotes returns archived closes between from and to, oldest first.
func (a *SQLiteArchive) GetQuotes(ctx context.Context, symbol models.Symbol, from, to time.Time) ([]models.QuotePoint, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT date, close
		FROM quotes
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol.String(), dayKey(from), dayKey(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	return scanQuotes(rows)
}

// RecentQuotes returns the newest limit closes for symbol, oldest first.
func (a *SQLiteArchive) RecentQuotes(ctx context.Context, symbol models.Symbol, limit int) ([]models.QuotePoint, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT date, close FROM (
			SELECT date, close FROM quotes
			WHERE symbol = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`, symbol.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	return scanQuotes(rows)
}

func scanQuotes(rows *sql.Rows) ([]models.QuotePoint, error) {
	defer rows.Close()

	var points []models.QuotePoint
	for rows.Next() {
		var p models.QuotePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quotes: %w", err)
	}
	return points, nil
}

// LastPrice returns the most recent observed price for symbol.
func (a *SQLiteArchive) LastPrice(ctx context.Context, symbol models.Symbol) (PriceObservation, bool, error) {
	obs := PriceObservation{Symbol: symbol}
	err := a.db.QueryRowContext(ctx, `
		SELECT price, cycle, fetched_at FROM prices
		WHERE symbol = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`, symbol.String()).Scan(&obs.Price, &obs.Cycle, &obs.FetchedAt)
	if err == sql.ErrNoRows {
		return PriceObservation{}, false, nil
	}
	if err != nil {
		return PriceObservation{}, false, fmt.Errorf("failed to query price: %w", err)
	}
	return obs, true, nil
}

// Symbols returns every symbol with archived closes, sorted.
func (a *SQLiteArchive) Symbols(ctx context.Context) ([]models.Symbol, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM quotes ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []models.Symbol
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, models.Symbol(s))
	}
	return symbols, rows.Err()
}

// Name implements stream.Consumer.
func (a *SQLiteArchive) Name() string { return "archive" }

// OnSnapshotUpdated archives each published snapshot.
func (a *SQLiteArchive) OnSnapshotUpdated(snapshot models.MarketSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSaveTimeout)
	defer cancel()

	if err := a.SaveSnapshot(ctx, snapshot); err != nil {
		a.logger.Warn().Uint64("cycle", snapshot.Cycle()).Err(err).Msg("Failed to archive snapshot")
		return
	}
	a.logger.Debug().Uint64("cycle", snapshot.Cycle()).Int("symbols", snapshot.Len()).Msg("Snapshot archived")
}

// OnAlertsUpdated implements stream.Consumer.
func (a *SQLiteArchive) OnAlertsUpdated([]models.AlertStatus) {}

// OnAlertTriggered implements stream.Consumer.
func (a *SQLiteArchive) OnAlertTriggered(models.AlertEvent) {}
