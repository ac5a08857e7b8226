// Package store provides SQLite-backed persistence for normalized flow
// records, per-source load metadata, and dedup seen-sets.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quantfold/flowsentry/internal/models"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database for all persistence operations.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/flowsentry/flow.db.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "flowsentry", "flow.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS flow_orders (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			source       TEXT NOT NULL,
			side         TEXT NOT NULL,
			order_date   TEXT,
			order_time   TEXT,
			ticker       TEXT NOT NULL,
			xmonth       TEXT,
			xdate        TEXT,
			xyear        TEXT,
			dte          TEXT,
			strike       TEXT,
			trade_price  TEXT,
			target_price TEXT,
			call_qty     REAL NOT NULL DEFAULT 0,
			call_dollar  REAL NOT NULL DEFAULT 0,
			put_qty      REAL NOT NULL DEFAULT 0,
			put_dollar   REAL NOT NULL DEFAULT 0,
			insights     TEXT,
			direction    TEXT,
			row_hash     TEXT,
			loaded_date  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flow_ticker ON flow_orders(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_flow_source ON flow_orders(source)`,
		`CREATE INDEX IF NOT EXISTS idx_flow_source_ticker ON flow_orders(source, ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_flow_side_ticker ON flow_orders(side, ticker)`,
		`CREATE TABLE IF NOT EXISTS flow_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dedup_state (
			namespace TEXT PRIMARY KEY,
			date      TEXT NOT NULL,
			seen_keys TEXT NOT NULL DEFAULT '[]'
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) today() string {
	return s.now().Format("2006-01-02")
}

// Reload replaces all rows for one source with the given records in a single
// transaction. Records are validated before the delete begins, so a rejected
// batch leaves prior data intact; readers never observe a partial swap.
func (s *Store) Reload(source string, records []models.FlowRecord) error {
	return s.ReloadAll(map[string][]models.FlowRecord{source: records})
}

// ReloadAll performs Reload for several sources in one transaction.
func (s *Store) ReloadAll(bySource map[string][]models.FlowRecord) error {
	for source, records := range bySource {
		for i := range records {
			if err := records[i].Validate(); err != nil {
				return fmt.Errorf("invalid record %d for source %s: %w", i, source, err)
			}
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	today := s.today()
	for source, records := range bySource {
		if _, err := tx.Exec(`DELETE FROM flow_orders WHERE source = ?`, source); err != nil {
			return fmt.Errorf("failed to clear source %s: %w", source, err)
		}
		for i := range records {
			r := &records[i]
			_, err := tx.Exec(`
				INSERT INTO flow_orders
					(source, side, order_date, order_time, ticker, xmonth, xdate, xyear, dte,
					 strike, trade_price, target_price, call_qty, call_dollar,
					 put_qty, put_dollar, insights, direction, row_hash, loaded_date)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
				r.Source, string(r.Side), r.OrderDate, r.OrderTime, r.Ticker,
				r.ExpiryMonth, r.ExpiryDay, r.ExpiryYear, r.DTE,
				r.Strike, r.TradePrice, r.TargetPrice, r.CallQty, r.CallDollar,
				r.PutQty, r.PutDollar, r.Insights, string(r.Direction), r.RowHash, today,
			)
			if err != nil {
				return fmt.Errorf("failed to insert record for %s: %w", source, err)
			}
		}
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO flow_meta (key, value) VALUES (?, ?)`,
			loadedDateKey(source), today,
		); err != nil {
			return fmt.Errorf("failed to stamp load date for %s: %w", source, err)
		}
	}

	return tx.Commit()
}

func loadedDateKey(source string) string {
	return "loaded_date:" + source
}

// IsLoadedToday reports whether the source was reloaded on the current
// calendar date.
func (s *Store) IsLoadedToday(source string) (bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM flow_meta WHERE key = ?`, loadedDateKey(source)).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read load date: %w", err)
	}
	return value == s.today(), nil
}

const netFlowCols = `
	COALESCE(SUM(CASE WHEN direction='BULLISH' THEN call_dollar + put_dollar ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN direction='BEARISH' THEN call_dollar + put_dollar ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN direction='BULLISH' THEN call_qty + put_qty ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN direction='BEARISH' THEN call_qty + put_qty ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN direction='BULLISH' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN direction='BEARISH' THEN 1 ELSE 0 END), 0)`

func scanNetFlow(scan func(...any) error, dest *models.NetFlow, extra ...any) error {
	args := append(append([]any{}, extra...),
		&dest.BullishDollar, &dest.BearishDollar,
		&dest.BullishQty, &dest.BearishQty,
		&dest.BullishCount, &dest.BearishCount,
	)
	if err := scan(args...); err != nil {
		return err
	}
	dest.Direction = models.NetDirection(dest.BullishDollar, dest.BearishDollar)
	return nil
}

// QueryNetFlow sums bullish vs bearish flow for a ticker, optionally filtered
// to one source.
func (s *Store) QueryNetFlow(ticker, source string) (*models.NetFlow, error) {
	where := `ticker = ?`
	args := []any{ticker}
	if source != "" {
		where += ` AND source = ?`
		args = append(args, source)
	}

	row := s.db.QueryRow(`SELECT `+netFlowCols+` FROM flow_orders WHERE `+where, args...)
	var nf models.NetFlow
	if err := scanNetFlow(row.Scan, &nf); err != nil {
		return nil, fmt.Errorf("failed to query net flow: %w", err)
	}
	return &nf, nil
}

// QueryNetFlowByExpiry groups a ticker's flow by expiry date, ordered by
// descending absolute net dollar flow. Rows without an expiry are excluded.
func (s *Store) QueryNetFlowByExpiry(ticker string) ([]models.ExpiryFlow, error) {
	rows, err := s.db.Query(`
		SELECT xmonth, xdate, xyear, `+netFlowCols+`
		FROM flow_orders
		WHERE ticker = ? AND xmonth != '' AND xdate != ''
		GROUP BY xmonth, xdate, xyear
		ORDER BY ABS(
			COALESCE(SUM(CASE WHEN direction='BULLISH' THEN call_dollar + put_dollar ELSE 0 END), 0) -
			COALESCE(SUM(CASE WHEN direction='BEARISH' THEN call_dollar + put_dollar ELSE 0 END), 0)
		) DESC`, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow by expiry: %w", err)
	}
	defer rows.Close()

	var result []models.ExpiryFlow
	for rows.Next() {
		var ef models.ExpiryFlow
		if err := scanNetFlow(rows.Scan, &ef.NetFlow, &ef.ExpiryMonth, &ef.ExpiryDay, &ef.ExpiryYear); err != nil {
			return nil, fmt.Errorf("failed to scan expiry flow: %w", err)
		}
		ef.Label = ef.ExpiryMonth + "/" + ef.ExpiryDay
		if ef.ExpiryYear != "" {
			ef.Label += "/" + ef.ExpiryYear
		}
		result = append(result, ef)
	}
	return result, rows.Err()
}

// QueryNetFlowBySource groups a ticker's flow by source, ordered by
// descending total dollar flow. The ordering sums every row, including rows
// with no classified direction.
func (s *Store) QueryNetFlowBySource(ticker string) ([]models.SourceFlow, error) {
	rows, err := s.db.Query(`
		SELECT source, `+netFlowCols+`
		FROM flow_orders
		WHERE ticker = ?
		GROUP BY source
		ORDER BY COALESCE(SUM(call_dollar + put_dollar), 0) DESC`,
		ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow by source: %w", err)
	}
	defer rows.Close()

	var result []models.SourceFlow
	for rows.Next() {
		var sf models.SourceFlow
		if err := scanNetFlow(rows.Scan, &sf.NetFlow, &sf.Source); err != nil {
			return nil, fmt.Errorf("failed to scan source flow: %w", err)
		}
		result = append(result, sf)
	}
	return result, rows.Err()
}

// strikeVariants lists the spellings a strike may have in the sheet: sources
// disagree on whether whole-number strikes carry a ".0" fraction, so both
// forms are probed.
func strikeVariants(strike string) []string {
	variants := []string{strike}
	if stripped, ok := strings.CutSuffix(strike, ".0"); ok {
		variants = append(variants, stripped)
	} else if !strings.Contains(strike, ".") {
		variants = append(variants, strike+".0")
	}
	return variants
}

// QueryOppositeOrders finds rows stored under source for the ticker on the
// opposite side that match the probe by exact call quantity, exact put
// quantity, or strike + expiry. The source scope keeps the probe against the
// historical feed only; same-day snapshots stored under other sources never
// match. A row matching several criteria is returned once with the first
// satisfied reason, in that evaluation order.
func (s *Store) QueryOppositeOrders(source, ticker string, oppositeSide models.Side, callQty, putQty float64, strike, xmonth, xdate string) ([]models.OppositeMatch, error) {
	type probe struct {
		reason string
		query  string
		args   []any
	}
	var probes []probe

	if callQty > 0 {
		probes = append(probes, probe{
			reason: "Same Call Qty",
			query:  `SELECT id, ` + flowCols + ` FROM flow_orders WHERE source = ? AND ticker = ? AND side = ? AND call_qty = ? AND call_qty > 0`,
			args:   []any{source, ticker, string(oppositeSide), callQty},
		})
	}
	if putQty > 0 {
		probes = append(probes, probe{
			reason: "Same Put Qty",
			query:  `SELECT id, ` + flowCols + ` FROM flow_orders WHERE source = ? AND ticker = ? AND side = ? AND put_qty = ? AND put_qty > 0`,
			args:   []any{source, ticker, string(oppositeSide), putQty},
		})
	}
	if strike != "" && xmonth != "" && xdate != "" {
		variants := strikeVariants(strike)
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(variants)), ",")
		args := []any{source, ticker, string(oppositeSide)}
		for _, v := range variants {
			args = append(args, v)
		}
		probes = append(probes, probe{
			reason: "Same Strike + Expiry",
			query: `SELECT id, ` + flowCols + ` FROM flow_orders
				WHERE source = ? AND ticker = ? AND side = ? AND strike IN (` + placeholders + `) AND xmonth = ? AND xdate = ?`,
			args: append(args, xmonth, xdate),
		})
	}

	seen := make(map[int64]bool)
	var matches []models.OppositeMatch
	for _, p := range probes {
		rows, err := s.db.Query(p.query, p.args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query opposite orders: %w", err)
		}
		for rows.Next() {
			var id int64
			r, err := scanRecordWithID(rows.Scan, &id)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan opposite order: %w", err)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			matches = append(matches, models.OppositeMatch{Record: *r, Reason: p.reason})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return matches, nil
}

// RecordFilter narrows QueryRecords results. Zero values mean "no filter".
type RecordFilter struct {
	Ticker    string
	Source    string
	Side      models.Side
	Days      int // only rows whose order date is within the past N days
	MinDollar float64
	MinQty    float64
}

// QueryRecords returns stored rows matching the filter. Date bounds apply
// only to rows with a parsable order date; rows with unparsable dates are
// kept when no date bound is set and excluded otherwise.
func (s *Store) QueryRecords(f RecordFilter) ([]models.FlowRecord, error) {
	where := []string{`1=1`}
	var args []any
	if f.Ticker != "" {
		where = append(where, `ticker = ?`)
		args = append(args, f.Ticker)
	}
	if f.Source != "" {
		where = append(where, `source = ?`)
		args = append(args, f.Source)
	}
	if f.Side != "" {
		where = append(where, `side = ?`)
		args = append(args, string(f.Side))
	}

	rows, err := s.db.Query(`SELECT `+flowCols+` FROM flow_orders WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var cutoff time.Time
	if f.Days > 0 {
		cutoff = s.now().AddDate(0, 0, -f.Days)
	}

	var result []models.FlowRecord
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if f.Days > 0 {
			day := r.OrderDay()
			if day.IsZero() || day.Before(cutoff) {
				continue
			}
		}
		if f.MinDollar > 0 && r.TotalDollar() < f.MinDollar {
			continue
		}
		if f.MinQty > 0 && r.TotalQty() < f.MinQty {
			continue
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

const flowCols = `source, side, order_date, order_time, ticker, xmonth, xdate, xyear, dte,
	strike, trade_price, target_price, call_qty, call_dollar, put_qty, put_dollar,
	insights, direction, row_hash, loaded_date`

func scanRecord(scan func(...any) error) (*models.FlowRecord, error) {
	return scanRecordWithID(scan)
}

func scanRecordWithID(scan func(...any) error, idDest ...any) (*models.FlowRecord, error) {
	var r models.FlowRecord
	var side, direction string
	args := append(append([]any{}, idDest...),
		&r.Source, &side, &r.OrderDate, &r.OrderTime, &r.Ticker,
		&r.ExpiryMonth, &r.ExpiryDay, &r.ExpiryYear, &r.DTE,
		&r.Strike, &r.TradePrice, &r.TargetPrice, &r.CallQty, &r.CallDollar,
		&r.PutQty, &r.PutDollar, &r.Insights, &direction, &r.RowHash, &r.LoadedDate,
	)
	if err := scan(args...); err != nil {
		return nil, err
	}
	r.Side = models.Side(side)
	r.Direction = models.Direction(direction)
	return &r, nil
}
