package engine

import (
	"github.com/quantfold/flowsentry/internal/dedup"
	"github.com/quantfold/flowsentry/internal/models"
)

// NamespaceNovelty scopes novelty-alert dedup keys.
const NamespaceNovelty = "novelty"

// BuildNoveltyCandidates turns every normalized row of an intraday section
// into a candidate. Blank-ticker rows were already dropped during
// normalization; everything left is alert-worthy until the dedup filter says
// otherwise.
func BuildNoveltyCandidates(section string, records []models.FlowRecord) []models.NoveltyCandidate {
	out := make([]models.NoveltyCandidate, 0, len(records))
	for i := range records {
		r := &records[i]
		out = append(out, models.NoveltyCandidate{
			Section:     section,
			RowHash:     r.RowHash,
			Label:       r.Label(),
			Ticker:      r.Ticker,
			Time:        r.OrderTime,
			TradePrice:  r.TradePrice,
			TargetPrice: r.TargetPrice,
			CallDollar:  r.CallDollar,
			CallQty:     r.CallQty,
			PutDollar:   r.PutDollar,
			PutQty:      r.PutQty,
			Insights:    r.Insights,
		})
	}
	return out
}

// NoveltyKey is the dedup identity of a new-row alert: the section name plus
// the full row content hash, so any cell edit makes the row new again.
func NoveltyKey(c models.NoveltyCandidate) string {
	return dedup.Key(c.Section, c.RowHash)
}
