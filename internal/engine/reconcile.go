package engine

import (
	"sort"
	"strconv"

	"github.com/quantfold/flowsentry/internal/dedup"
	"github.com/quantfold/flowsentry/internal/models"
	"github.com/quantfold/flowsentry/internal/normalize"
)

// Dedup namespaces for the two reconciliation engines. The checked set is
// separate from the alert set: a row is only probed against history once per
// day whether or not the probe produced matches.
const (
	NamespaceConfirmation    = "confirmation"
	NamespaceOpposite        = "opposite"
	NamespaceOppositeChecked = "opposite.checked"
)

// AggregateByTicker sums one feed's records per ticker and resolves each
// aggregate's direction from its bullish vs bearish dollar split.
func AggregateByTicker(records []models.FlowRecord) map[string]models.TickerAggregate {
	aggs := make(map[string]models.TickerAggregate)
	for i := range records {
		r := &records[i]
		a := aggs[r.Ticker]
		a.Ticker = r.Ticker
		a.CallDollar += r.CallDollar
		a.CallQty += r.CallQty
		a.PutDollar += r.PutDollar
		a.PutQty += r.PutQty
		a.Records++
		switch normalize.RecordDirection(*r) {
		case models.Bullish:
			a.BullishDollar += r.TotalDollar()
		case models.Bearish:
			a.BearishDollar += r.TotalDollar()
		}
		aggs[r.Ticker] = a
	}
	for ticker, a := range aggs {
		a.Direction = models.NetDirection(a.BullishDollar, a.BearishDollar)
		aggs[ticker] = a
	}
	return aggs
}

// HistoryReader is the slice of the record store the confirmation engine
// needs for historical context.
type HistoryReader interface {
	QueryNetFlow(ticker, source string) (*models.NetFlow, error)
	QueryNetFlowByExpiry(ticker string) ([]models.ExpiryFlow, error)
}

// BuildConfirmations finds tickers whose near-term and floor aggregates agree
// on a non-neutral direction, then attaches historical context from the
// store. History never vetoes a confirmation; a disagreeing history is
// surfaced as a caution in the message instead.
func BuildConfirmations(nearTerm, floor []models.FlowRecord, hist HistoryReader, historySource string, topExpiries int, minTotal float64) ([]models.Confirmation, error) {
	nearAggs := AggregateByTicker(nearTerm)
	floorAggs := AggregateByTicker(floor)

	tickers := make([]string, 0, len(nearAggs))
	for ticker := range nearAggs {
		if _, ok := floorAggs[ticker]; ok {
			tickers = append(tickers, ticker)
		}
	}
	sort.Strings(tickers)

	var out []models.Confirmation
	for _, ticker := range tickers {
		na, fa := nearAggs[ticker], floorAggs[ticker]
		if na.Direction == models.Neutral || na.Direction != fa.Direction {
			continue
		}
		if minTotal > 0 && na.CallDollar+na.PutDollar+fa.CallDollar+fa.PutDollar < minTotal {
			continue
		}

		c := models.Confirmation{
			Ticker:    ticker,
			Direction: na.Direction,
			NearTerm:  na,
			Floor:     fa,
		}

		if hist != nil {
			nf, err := hist.QueryNetFlow(ticker, historySource)
			if err != nil {
				return nil, err
			}
			if nf.BullishCount+nf.BearishCount > 0 {
				c.History = nf
				if nf.Direction != models.Neutral {
					aligned := nf.Direction == c.Direction
					c.HistAligned = &aligned
				}
			}

			flows, err := hist.QueryNetFlowByExpiry(ticker)
			if err != nil {
				return nil, err
			}
			if len(flows) > topExpiries {
				flows = flows[:topExpiries]
			}
			c.ExpiryFlow = flows
		}

		out = append(out, c)
	}
	return out, nil
}

// ConfirmationKey is the dedup identity of a multi-source confirmation: the
// direction, ticker, and the aggregate flow across both sources. A change in
// aggregate flow produces a new key for the same ticker.
func ConfirmationKey(c models.Confirmation) string {
	return dedup.Key(string(c.Direction), c.Ticker,
		flowFingerprint(c.NearTerm), flowFingerprint(c.Floor))
}

func flowFingerprint(a models.TickerAggregate) string {
	return dedup.Key(
		strconv.FormatFloat(a.CallDollar, 'f', -1, 64),
		strconv.FormatFloat(a.CallQty, 'f', -1, 64),
		strconv.FormatFloat(a.PutDollar, 'f', -1, 64),
		strconv.FormatFloat(a.PutQty, 'f', -1, 64),
	)
}

// OppositeReader is the slice of the record store the opposite-order engine
// needs.
type OppositeReader interface {
	QueryOppositeOrders(source, ticker string, oppositeSide models.Side, callQty, putQty float64, strike, xmonth, xdate string) ([]models.OppositeMatch, error)
}

// maxOppositeMatches bounds how many historical rows one alert cites.
const maxOppositeMatches = 3

// BuildOpposites probes each new record against opposite-side rows stored
// under source. The probes run against the historical feed only; the new
// rows' own snapshot is reloaded under other sources and must not match
// itself. Records with no matches are skipped; a candidate cites at most
// maxOppositeMatches historical rows in store return order.
func BuildOpposites(records []models.FlowRecord, reader OppositeReader, source string) ([]models.OppositeCandidate, error) {
	var out []models.OppositeCandidate
	for i := range records {
		r := &records[i]
		matches, err := reader.QueryOppositeOrders(
			source, r.Ticker, r.Side.Opposite(), r.CallQty, r.PutQty,
			r.Strike, r.ExpiryMonth, r.ExpiryDay,
		)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > maxOppositeMatches {
			matches = matches[:maxOppositeMatches]
		}
		out = append(out, models.OppositeCandidate{Record: *r, Matches: matches})
	}
	return out, nil
}

// CheckedKey identifies a row in the once-per-day probe set.
func CheckedKey(r models.FlowRecord) string {
	return dedup.Key(string(r.Side), r.Ticker, r.RowHash)
}

// OppositeKey is the dedup identity of an opposite-order alert: the new
// row's side, ticker, strike, and a hash of its identifying cells.
func OppositeKey(c models.OppositeCandidate) string {
	r := c.Record
	partial := dedup.Key(r.OrderDate, r.OrderTime,
		strconv.FormatFloat(r.CallQty, 'f', -1, 64),
		strconv.FormatFloat(r.PutQty, 'f', -1, 64))
	return dedup.Key(string(r.Side), r.Ticker, r.Strike, partial)
}
