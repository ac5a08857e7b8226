package models

// ThresholdCandidate is a potential threshold alert: one row whose call or put
// side breached the configured dollar or quantity threshold. A row that
// breaches on both sides produces two candidates, one per field.
type ThresholdCandidate struct {
	Side        Side
	Label       string
	Ticker      string
	Field       string // "Call" or "Put"
	Date        string
	Time        string
	TradePrice  string
	TargetPrice string
	CallDollar  float64
	CallQty     float64
	PutDollar   float64
	PutQty      float64
	Insights    string
	RawValue    float64 // the value that crossed its threshold
}

// NoveltyCandidate is a potential alert for any non-empty new row in an
// intraday section. Identity is the full row content hash, so an edited row
// counts as new.
type NoveltyCandidate struct {
	Section     string
	RowHash     string
	Label       string
	Ticker      string
	Time        string
	TradePrice  string
	TargetPrice string
	CallDollar  float64
	CallQty     float64
	PutDollar   float64
	PutQty      float64
	Insights    string
}

// TickerAggregate sums one feed's flow for a single ticker and resolves its
// direction from the bullish vs bearish dollar split.
type TickerAggregate struct {
	Ticker        string
	Direction     Direction
	CallDollar    float64
	CallQty       float64
	PutDollar     float64
	PutQty        float64
	BullishDollar float64
	BearishDollar float64
	Records       int
}

// Confirmation is a multi-source agreement candidate: the near-term and floor
// aggregates for a ticker point the same non-neutral way. History fields are
// context only and never veto the candidate.
type Confirmation struct {
	Ticker      string
	Direction   Direction
	NearTerm    TickerAggregate
	Floor       TickerAggregate
	History     *NetFlow     // nil when the store has no rows for the ticker
	HistAligned *bool        // nil when History has no known direction
	ExpiryFlow  []ExpiryFlow // top entries by absolute net dollar flow
}

// OppositeCandidate pairs a new near-term row with the historical
// opposite-side rows it matched.
type OppositeCandidate struct {
	Record  FlowRecord
	Matches []OppositeMatch
}
