package store

import (
	"fmt"
)

// Stats summarizes database contents for the operator stats command.
type Stats struct {
	TotalRecords  int               `json:"total_records"`
	BySource      map[string]int    `json:"by_source"`
	BySide        map[string]int    `json:"by_side"`
	UniqueTickers int               `json:"unique_tickers"`
	LoadDates     map[string]string `json:"load_dates"`
}

// QueryStats gathers record counts and load dates across all sources.
func (s *Store) QueryStats() (*Stats, error) {
	st := &Stats{
		BySource:  make(map[string]int),
		BySide:    make(map[string]int),
		LoadDates: make(map[string]string),
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM flow_orders`).Scan(&st.TotalRecords); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT ticker) FROM flow_orders`).Scan(&st.UniqueTickers); err != nil {
		return nil, fmt.Errorf("failed to count tickers: %w", err)
	}

	rows, err := s.db.Query(`SELECT source, COUNT(*) FROM flow_orders GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by source: %w", err)
	}
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			rows.Close()
			return nil, err
		}
		st.BySource[source] = n
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT side, COUNT(*) FROM flow_orders GROUP BY side`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by side: %w", err)
	}
	for rows.Next() {
		var side string
		var n int
		if err := rows.Scan(&side, &n); err != nil {
			rows.Close()
			return nil, err
		}
		st.BySide[side] = n
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT key, value FROM flow_meta WHERE key LIKE 'loaded_date:%'`)
	if err != nil {
		return nil, fmt.Errorf("failed to read load dates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		st.LoadDates[key[len("loaded_date:"):]] = value
	}
	return st, rows.Err()
}
