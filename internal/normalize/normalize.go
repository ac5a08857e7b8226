// Package normalize maps heterogeneous spreadsheet layouts onto FlowRecords.
//
// Feeds label the same logical columns inconsistently ("Calls Qty", "Call
// Quantity", "# Calls"), reorder them, and pad rows unevenly, so columns are
// located by case-insensitive substring match against accepted label variants
// instead of by position.
package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/quantfold/flowsentry/internal/models"
)

// FindColumn returns the index of the first header containing any of the
// given patterns (case-insensitive, whitespace-normalized), or -1.
func FindColumn(headers []string, patterns ...string) int {
	for i, h := range headers {
		norm := strings.ToLower(strings.Join(strings.Fields(h), " "))
		for _, pat := range patterns {
			if strings.Contains(norm, strings.ToLower(pat)) {
				return i
			}
		}
	}
	return -1
}

// SafeGet returns row[idx], or "" when the index is absent or the row is
// shorter than the header (trailing blank cells are not transmitted).
func SafeGet(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}

// ParseDollar parses a currency string ("$1,234,567", "$1.2M", "500K") into a
// float. Returns 0.0 on any parse failure.
func ParseDollar(value string) float64 {
	s := strings.TrimSpace(value)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	return parseSuffixed(strings.TrimSpace(s))
}

// ParseQty parses a quantity string ("1,234", "1.2K") into a float.
// Returns 0.0 on any parse failure.
func ParseQty(value string) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	return parseSuffixed(strings.TrimSpace(s))
}

func parseSuffixed(s string) float64 {
	if s == "" {
		return 0.0
	}
	multiplier := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		multiplier = 1e3
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1e6
		s = s[:len(s)-1]
	case 'B', 'b':
		multiplier = 1e9
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return v * multiplier
}

// RowHash fingerprints the full row content. Any cell change anywhere in the
// row changes the hash, so an edited row reads as new.
func RowHash(row []string) string {
	sum := md5.Sum([]byte(strings.Join(row, "|")))
	return hex.EncodeToString(sum[:])
}

// columnSet holds the detected indexes for one header row.
type columnSet struct {
	date, time, ticker              int
	xmonth, xdate, xyear, dte       int
	strike, tradePrice, targetPrice int
	callQty, callDollar             int
	putQty, putDollar               int
	insights                        int
}

func detectColumns(headers []string) columnSet {
	return columnSet{
		date:        FindColumn(headers, "today's date", "order date", "date"),
		time:        FindColumn(headers, "time", "order time"),
		ticker:      FindColumn(headers, "ticker", "symbol", "stock"),
		xmonth:      FindColumn(headers, "xmonth"),
		xdate:       FindColumn(headers, "xdate"),
		xyear:       FindColumn(headers, "xyear", "x year"),
		dte:         FindColumn(headers, "dte"),
		strike:      FindColumn(headers, "strike"),
		tradePrice:  FindColumn(headers, "trade price", "trd $", "trade $"),
		targetPrice: FindColumn(headers, "price target", "price traget", "trgt", "target price"),
		callQty:     FindColumn(headers, "calls qty", "call qty", "call quantity", "# calls", "call vol"),
		callDollar:  FindColumn(headers, "calls $", "call $", "call$", "call dollar", "calls premiums"),
		putQty:      FindColumn(headers, "puts qty", "put qty", "put quantity", "# puts", "put vol"),
		putDollar:   FindColumn(headers, "puts $", "put $", "put$", "put dollar", "puts premiums"),
		insights:    FindColumn(headers, "order insights", "insights"),
	}
}

// stripLeadingZeros normalizes "07" to "7"; non-numeric values pass through.
func stripLeadingZeros(s string) string {
	if s == "" {
		return s
	}
	if n, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(n)
	}
	return s
}

// BuildRecords normalizes a header row plus data rows into FlowRecords for
// one source and side. Rows without a ticker are silently dropped. When a row
// carries a days-to-expiry value but no explicit expiry, the expiry is
// back-filled as now + DTE days.
func BuildRecords(source string, side models.Side, headers []string, rows [][]string, now time.Time) []models.FlowRecord {
	cols := detectColumns(headers)
	records := make([]models.FlowRecord, 0, len(rows))

	for _, row := range rows {
		ticker := strings.TrimSpace(SafeGet(row, cols.ticker))
		if ticker == "" {
			continue
		}

		insights := SafeGet(row, cols.insights)
		xmonth := strings.TrimSpace(SafeGet(row, cols.xmonth))
		xdate := strings.TrimSpace(SafeGet(row, cols.xdate))
		xyear := strings.TrimSpace(SafeGet(row, cols.xyear))
		dte := strings.TrimSpace(SafeGet(row, cols.dte))

		if xmonth == "" && xdate == "" && dte != "" {
			if days, err := strconv.Atoi(dte); err == nil {
				expiry := now.AddDate(0, 0, days)
				xmonth = strconv.Itoa(int(expiry.Month()))
				xdate = strconv.Itoa(expiry.Day())
				xyear = strconv.Itoa(expiry.Year() % 100)
			}
		}

		xmonth = stripLeadingZeros(xmonth)
		xdate = stripLeadingZeros(xdate)
		if xmonth != "" && xdate != "" && xyear == "" {
			xyear = strconv.Itoa(now.Year() % 100)
		}

		records = append(records, models.FlowRecord{
			Source:      source,
			Side:        side,
			OrderDate:   SafeGet(row, cols.date),
			OrderTime:   SafeGet(row, cols.time),
			Ticker:      strings.ToUpper(ticker),
			ExpiryMonth: xmonth,
			ExpiryDay:   xdate,
			ExpiryYear:  xyear,
			DTE:         dte,
			Strike:      strings.TrimSpace(SafeGet(row, cols.strike)),
			TradePrice:  SafeGet(row, cols.tradePrice),
			TargetPrice: SafeGet(row, cols.targetPrice),
			CallQty:     ParseQty(SafeGet(row, cols.callQty)),
			CallDollar:  ParseDollar(SafeGet(row, cols.callDollar)),
			PutQty:      ParseQty(SafeGet(row, cols.putQty)),
			PutDollar:   ParseDollar(SafeGet(row, cols.putDollar)),
			Insights:    insights,
			Direction:   ClassifyInsight(insights),
			RowHash:     RowHash(row),
		})
	}

	return records
}
