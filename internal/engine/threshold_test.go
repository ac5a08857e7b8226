package engine

import (
	"testing"
	"time"

	"github.com/quantfold/flowsentry/internal/models"
	"github.com/quantfold/flowsentry/internal/normalize"
)

func TestBuildThresholdCandidates(t *testing.T) {
	records := []models.FlowRecord{
		{Ticker: "AAPL", Side: models.Buying, CallDollar: 2e6, CallQty: 100},       // dollar breach, call
		{Ticker: "TSLA", Side: models.Selling, PutQty: 9000},                       // qty breach, put
		{Ticker: "NVDA", Side: models.Buying, CallDollar: 5e6, PutDollar: 3e6},     // both sides
		{Ticker: "MSFT", Side: models.Buying, CallDollar: 999999, CallQty: 4999.9}, // under both
	}

	got := BuildThresholdCandidates(records, 1e6, 5000)
	if len(got) != 4 {
		t.Fatalf("got %d candidates, want 4", len(got))
	}

	byTicker := make(map[string][]models.ThresholdCandidate)
	for _, c := range got {
		byTicker[c.Ticker] = append(byTicker[c.Ticker], c)
	}
	if len(byTicker["NVDA"]) != 2 {
		t.Errorf("a row breaching both sides must yield two candidates, got %d", len(byTicker["NVDA"]))
	}
	if len(byTicker["MSFT"]) != 0 {
		t.Error("sub-threshold row must not alert")
	}
	if c := byTicker["AAPL"][0]; c.Field != "Call" || c.RawValue != 2e6 {
		t.Errorf("AAPL candidate: %+v", c)
	}
	if c := byTicker["TSLA"][0]; c.Field != "Put" || c.RawValue != 9000 {
		t.Errorf("TSLA candidate: %+v", c)
	}
}

func TestBuildThresholdCandidates_ZeroThresholdDisables(t *testing.T) {
	records := []models.FlowRecord{
		{Ticker: "AAPL", Side: models.Buying, CallQty: 50},
	}
	if got := BuildThresholdCandidates(records, 1e6, 0); len(got) != 0 {
		t.Errorf("zero qty threshold must disable the qty criterion, got %d", len(got))
	}
}

func TestThreshold_FromRawRows(t *testing.T) {
	headers := []string{"Ticker", "Strike", "Call Qty", "Call $"}
	rows := [][]string{
		{"AAPL", "150", "1200", "600000"},
		{"", "140", "10", "1000"},
	}

	records := normalize.BuildRecords("sevenday", models.Buying, headers, rows, time.Now())
	got := BuildThresholdCandidates(records, 500000, 1000)

	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1 (blank-ticker row drops before evaluation)", len(got))
	}
	if got[0].Ticker != "AAPL" || got[0].Field != "Call" {
		t.Errorf("candidate: %+v", got[0])
	}
}

func TestThresholdKey_Distinct(t *testing.T) {
	base := models.ThresholdCandidate{Side: models.Buying, Label: "AAPL 1 17 150", Field: "Call", RawValue: 2e6}
	same := base
	otherField := base
	otherField.Field = "Put"
	grown := base
	grown.RawValue = 3e6

	if ThresholdKey(base) != ThresholdKey(same) {
		t.Error("identical candidates must share a key")
	}
	if ThresholdKey(base) == ThresholdKey(otherField) {
		t.Error("call and put breaches must have distinct keys")
	}
	if ThresholdKey(base) == ThresholdKey(grown) {
		t.Error("a grown raw value is a new alert")
	}
}
