// Package models defines the core domain entities: flow records, net-flow
// aggregates, and alert candidates.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Side is which side of an options trade a row represents.
type Side string

const (
	Buying  Side = "BUYING"
	Selling Side = "SELLING"
)

// Opposite returns the other trade side.
func (s Side) Opposite() Side {
	if s == Buying {
		return Selling
	}
	return Buying
}

// Direction is the sentiment assigned to a record or aggregate.
// A record's direction may be empty when its insight text encodes neither.
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// FlowRecord is one normalized order-flow row from a feed.
// Records are created in bulk during a source reload and read-only afterward;
// cross-source correlation never merges records from distinct sources.
type FlowRecord struct {
	Source      string    `json:"source"`
	Side        Side      `json:"side"`
	OrderDate   string    `json:"order_date"`
	OrderTime   string    `json:"order_time"`
	Ticker      string    `json:"ticker"`
	ExpiryMonth string    `json:"expiry_month"`
	ExpiryDay   string    `json:"expiry_day"`
	ExpiryYear  string    `json:"expiry_year"`
	DTE         string    `json:"dte"`
	Strike      string    `json:"strike"`
	TradePrice  string    `json:"trade_price"`
	TargetPrice string    `json:"target_price"`
	CallQty     float64   `json:"call_qty"`
	CallDollar  float64   `json:"call_dollar"`
	PutQty      float64   `json:"put_qty"`
	PutDollar   float64   `json:"put_dollar"`
	Insights    string    `json:"insights"`
	Direction   Direction `json:"direction"`
	RowHash     string    `json:"row_hash"`
	LoadedDate  string    `json:"loaded_date"`
}

// Validate checks record field constraints.
func (r *FlowRecord) Validate() error {
	if strings.TrimSpace(r.Ticker) == "" {
		return errors.New("ticker must not be empty")
	}
	if r.Source == "" {
		return errors.New("source must not be empty")
	}
	if r.Side != Buying && r.Side != Selling {
		return fmt.Errorf("side must be BUYING or SELLING, got %q", r.Side)
	}
	if r.CallQty < 0 || r.PutQty < 0 {
		return errors.New("quantities must not be negative")
	}
	if r.CallDollar < 0 || r.PutDollar < 0 {
		return errors.New("dollar amounts must not be negative")
	}
	return nil
}

// Expiry returns the display expiry ("month day"), empty when unknown.
func (r *FlowRecord) Expiry() string {
	return strings.TrimSpace(r.ExpiryMonth + " " + r.ExpiryDay)
}

// Label is the human identity of the row: "TICKER expiry strike".
func (r *FlowRecord) Label() string {
	return strings.TrimSpace(strings.Join([]string{r.Ticker, r.Expiry(), r.Strike}, " "))
}

// TotalDollar is call$ + put$.
func (r *FlowRecord) TotalDollar() float64 { return r.CallDollar + r.PutDollar }

// TotalQty is call qty + put qty.
func (r *FlowRecord) TotalQty() float64 { return r.CallQty + r.PutQty }

// OrderDay parses the M/D/YY order date. Unparsable dates return the zero
// time; callers exclude those rows from date-bounded filters but keep them
// everywhere else.
func (r *FlowRecord) OrderDay() time.Time {
	parts := strings.Split(strings.TrimSpace(r.OrderDate), "/")
	if len(parts) != 3 {
		return time.Time{}
	}
	var m, d, y int
	if _, err := fmt.Sscanf(r.OrderDate, "%d/%d/%d", &m, &d, &y); err != nil {
		return time.Time{}
	}
	if y < 100 {
		y += 2000
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// NetFlow is a bullish/bearish aggregate over a set of records.
type NetFlow struct {
	BullishDollar float64   `json:"bullish_dollar"`
	BearishDollar float64   `json:"bearish_dollar"`
	BullishQty    float64   `json:"bullish_qty"`
	BearishQty    float64   `json:"bearish_qty"`
	BullishCount  int       `json:"bullish_count"`
	BearishCount  int       `json:"bearish_count"`
	Direction     Direction `json:"direction"`
}

// NetDirection resolves an aggregate direction from dollar totals.
func NetDirection(bullishDollar, bearishDollar float64) Direction {
	switch {
	case bullishDollar > bearishDollar:
		return Bullish
	case bearishDollar > bullishDollar:
		return Bearish
	default:
		return Neutral
	}
}

// ExpiryFlow is a NetFlow grouped by one expiry date.
type ExpiryFlow struct {
	ExpiryMonth string `json:"expiry_month"`
	ExpiryDay   string `json:"expiry_day"`
	ExpiryYear  string `json:"expiry_year"`
	Label       string `json:"label"`
	NetFlow
}

// SourceFlow is a NetFlow grouped by one source.
type SourceFlow struct {
	Source string `json:"source"`
	NetFlow
}

// OppositeMatch pairs a historical record with the reason it matched.
type OppositeMatch struct {
	Record FlowRecord `json:"record"`
	Reason string     `json:"reason"`
}
