// Package sheets fetches tabular sections from the Google Sheets values API.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

// Client provides read access to spreadsheet ranges. Requests are rate
// limited to stay inside the per-minute read quota.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// valueRange mirrors the values API response body. Cells decode as any
// because the API mixes strings and numbers in one grid.
type valueRange struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

// NewClient creates a sheets client authenticated by API key.
func NewClient(apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// 60 reads/minute default quota; stay at half of it
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
	}
}

// FetchRange retrieves the cell grid for an A1 range. Rows come back ragged:
// trailing empty cells are omitted by the API.
func (c *Client) FetchRange(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error) {
	if err := ValidateRange(a1Range); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/%s/values/%s", c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(a1Range))
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("valueRenderOption", "FORMATTED_VALUE")

	resp, err := c.doRequest(ctx, u+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch range %s: %w", a1Range, err)
	}
	defer resp.Body.Close()

	var vr valueRange
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("failed to decode range %s: %w", a1Range, err)
	}

	grid := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				cells[j] = fmt.Sprint(cell)
			}
		}
		grid[i] = cells
	}
	return grid, nil
}

// FetchSection retrieves a section range and splits it into a header row and
// data rows. An empty section yields nil headers and no rows.
func (c *Client) FetchSection(ctx context.Context, spreadsheetID, a1Range string) ([]string, [][]string, error) {
	grid, err := c.FetchRange(ctx, spreadsheetID, a1Range)
	if err != nil {
		return nil, nil, err
	}
	if len(grid) == 0 {
		return nil, nil, nil
	}
	return grid[0], grid[1:], nil
}

// FetchCell retrieves a single cell as a string, or "" when empty.
func (c *Client) FetchCell(ctx context.Context, spreadsheetID, a1Cell string) (string, error) {
	grid, err := c.FetchRange(ctx, spreadsheetID, a1Cell)
	if err != nil {
		return "", err
	}
	if len(grid) == 0 || len(grid[0]) == 0 {
		return "", nil
	}
	return grid[0][0], nil
}

// ValidateRange rejects ranges the values API cannot serve: the sheet
// name and cell reference must both be present ("Sheet1!A1:Q500").
func ValidateRange(a1Range string) error {
	name, ref, ok := strings.Cut(a1Range, "!")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(ref) == "" {
		return fmt.Errorf("malformed range %q: want Sheet!A1:Z", a1Range)
	}
	return nil
}

// doRequest performs an HTTP GET with retry logic.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
