package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", 5*time.Second)
	c.baseURL = srv.URL
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestFetchSection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("missing api key, got %q", got)
		}
		fmt.Fprint(w, `{"range":"Sheet1!A1:C3","values":[
			["Ticker","Calls Qty","Calls $"],
			["AAPL",1500,"$1.2M"],
			["TSLA"]
		]}`)
	})

	headers, rows, err := c.FetchSection(context.Background(), "sheet-id", "Sheet1!A1:C3")
	if err != nil {
		t.Fatalf("FetchSection: %v", err)
	}
	if len(headers) != 3 || headers[0] != "Ticker" {
		t.Errorf("headers: %v", headers)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][1] != "1500" {
		t.Errorf("numeric cell should render as string, got %q", rows[0][1])
	}
	if len(rows[1]) != 1 {
		t.Errorf("ragged row should stay short, got %v", rows[1])
	}
}

func TestFetchSection_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"range":"Sheet1!A1:C3"}`)
	})

	headers, rows, err := c.FetchSection(context.Background(), "sheet-id", "Sheet1!A1:C3")
	if err != nil {
		t.Fatalf("FetchSection: %v", err)
	}
	if headers != nil || rows != nil {
		t.Errorf("empty section: headers=%v rows=%v", headers, rows)
	}
}

func TestFetchCell(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values":[["ON"]]}`)
	})

	v, err := c.FetchCell(context.Background(), "sheet-id", "Signals!B2")
	if err != nil {
		t.Fatalf("FetchCell: %v", err)
	}
	if v != "ON" {
		t.Errorf("got %q, want ON", v)
	}
}

func TestFetchRange_RetriesServerErrors(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"values":[["ok"]]}`)
	})

	grid, err := c.FetchRange(context.Background(), "sheet-id", "Sheet1!A1")
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if grid[0][0] != "ok" {
		t.Errorf("grid: %v", grid)
	}
}

func TestFetchRange_ClientErrorDoesNotRetry(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	})

	if _, err := c.FetchRange(context.Background(), "sheet-id", "Sheet1!A1"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("4xx must not retry, got %d attempts", calls)
	}
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"Sheet1!A1:Q500", false},
		{"Floor Monitor!B2", false},
		{"A1:Q500", true},
		{"Sheet1!", true},
		{"!A1", true},
		{"", true},
	}
	for _, tt := range tests {
		err := ValidateRange(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRange(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
	}
}
