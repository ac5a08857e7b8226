package models

import (
	"testing"
	"time"
)

func TestFlowRecord_Validate(t *testing.T) {
	valid := FlowRecord{Source: "sevenday", Side: Buying, Ticker: "AAPL"}

	tests := []struct {
		name    string
		mutate  func(*FlowRecord)
		wantErr bool
	}{
		{"valid", func(r *FlowRecord) {}, false},
		{"blank ticker", func(r *FlowRecord) { r.Ticker = "  " }, true},
		{"missing source", func(r *FlowRecord) { r.Source = "" }, true},
		{"bad side", func(r *FlowRecord) { r.Side = "HOLDING" }, true},
		{"negative qty", func(r *FlowRecord) { r.CallQty = -1 }, true},
		{"negative dollar", func(r *FlowRecord) { r.PutDollar = -0.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			if err := r.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestSide_Opposite(t *testing.T) {
	if Buying.Opposite() != Selling || Selling.Opposite() != Buying {
		t.Error("Opposite must swap sides")
	}
}

func TestFlowRecord_Label(t *testing.T) {
	r := FlowRecord{Ticker: "AAPL", ExpiryMonth: "1", ExpiryDay: "17", Strike: "150"}
	if got := r.Label(); got != "AAPL 1 17 150" {
		t.Errorf("Label() = %q", got)
	}

	bare := FlowRecord{Ticker: "TSLA"}
	if got := bare.Label(); got != "TSLA" {
		t.Errorf("bare Label() = %q", got)
	}
}

func TestFlowRecord_OrderDay(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"1/5/26", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"12/31/2025", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"not a date", time.Time{}},
		{"13/45/26", time.Time{}},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		r := FlowRecord{OrderDate: tt.in}
		if got := r.OrderDay(); !got.Equal(tt.want) {
			t.Errorf("OrderDay(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNetDirection(t *testing.T) {
	tests := []struct {
		bull, bear float64
		want       Direction
	}{
		{100, 50, Bullish},
		{50, 100, Bearish},
		{0, 0, Neutral},
		{100, 100, Neutral},
	}
	for _, tt := range tests {
		if got := NetDirection(tt.bull, tt.bear); got != tt.want {
			t.Errorf("NetDirection(%v, %v) = %q, want %q", tt.bull, tt.bear, got, tt.want)
		}
	}
}
