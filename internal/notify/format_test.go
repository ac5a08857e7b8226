package notify

import (
	"strings"
	"testing"

	"github.com/quantfold/flowsentry/internal/models"
)

func TestFormatDollar(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2.5e9, "$2.5B"},
		{1.2e6, "$1.2M"},
		{2e6, "$2M"},
		{750e3, "$750K"},
		{900, "$900"},
		{0, "$0"},
	}
	for _, tt := range tests {
		if got := FormatDollar(tt.in); got != tt.want {
			t.Errorf("FormatDollar(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatQty(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.5e6, "1.5M"},
		{12e3, "12K"},
		{340, "340"},
	}
	for _, tt := range tests {
		if got := FormatQty(tt.in); got != tt.want {
			t.Errorf("FormatQty(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatThreshold(t *testing.T) {
	msg := FormatThreshold(models.ThresholdCandidate{
		Side:        models.Buying,
		Label:       "AAPL 1 17 150",
		Ticker:      "AAPL",
		Field:       "Call",
		Date:        "1/5/26",
		Time:        "10:31",
		TradePrice:  "148.5",
		TargetPrice: "165",
		CallDollar:  1.2e6,
		CallQty:     1500,
		PutDollar:   3e5,
		PutQty:      200,
		Insights:    "bullish sweep <above ask>",
	})

	for _, want := range []string{"BUYING", "Call side", "AAPL 1 17 150", "$1.2M", "1.5K", "$300K", "148.5", "165"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "<above") {
		t.Error("insight text must be HTML-escaped")
	}
	if !strings.Contains(msg, "&lt;above ask&gt;") {
		t.Errorf("escaped insight missing:\n%s", msg)
	}
}

func TestFormatConfirmation(t *testing.T) {
	aligned := false
	msg := FormatConfirmation(models.Confirmation{
		Ticker:    "TSLA",
		Direction: models.Bearish,
		NearTerm:    models.TickerAggregate{Direction: models.Bearish, PutDollar: 2e6, Records: 3},
		Floor:       models.TickerAggregate{Direction: models.Bearish, PutDollar: 5e5, Records: 1},
		History:     &models.NetFlow{BullishDollar: 4e6, BearishDollar: 1e6},
		HistAligned: &aligned,
		ExpiryFlow: []models.ExpiryFlow{
			{Label: "1/17/26", NetFlow: models.NetFlow{BullishDollar: 1e6, Direction: models.Bullish}},
		},
	})

	for _, want := range []string{"TSLA", "BEARISH", "CAUTION", "1/17/26", "Near-term", "Floor"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatConfirmation_NoHistory(t *testing.T) {
	msg := FormatConfirmation(models.Confirmation{
		Ticker:    "NEWCO",
		Direction: models.Bullish,
	})
	if strings.Contains(msg, "History") {
		t.Error("absent history must not render a history block")
	}
}

func TestFormatOpposite(t *testing.T) {
	msg := FormatOpposite(models.OppositeCandidate{
		Record: models.FlowRecord{Ticker: "AAPL", Side: models.Buying, Strike: "150", CallQty: 500},
		Matches: []models.OppositeMatch{{
			Record: models.FlowRecord{Ticker: "AAPL", Side: models.Selling, Source: "allday", Strike: "150"},
			Reason: "Same Call Qty",
		}},
	})
	for _, want := range []string{"AAPL", "BUYING", "SELLING", "Same Call Qty", "allday"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatSignal(t *testing.T) {
	if msg := FormatSignal("SPX 0DTE", "", "ON"); !strings.Contains(msg, "ON") || strings.Contains(msg, "→") {
		t.Errorf("first observation: %q", msg)
	}
	if msg := FormatSignal("SPX 0DTE", "ON", "OFF"); !strings.Contains(msg, "ON → OFF") {
		t.Errorf("transition: %q", msg)
	}
}
