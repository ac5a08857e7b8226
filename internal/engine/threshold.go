package engine

import (
	"strconv"

	"github.com/quantfold/flowsentry/internal/dedup"
	"github.com/quantfold/flowsentry/internal/models"
)

// NamespaceThreshold scopes threshold-alert dedup keys.
const NamespaceThreshold = "threshold"

// BuildThresholdCandidates scans near-term records for call or put sides
// breaching the dollar or quantity threshold. A zero threshold disables that
// criterion. A row breaching on both sides yields two candidates.
func BuildThresholdCandidates(records []models.FlowRecord, dollarMin, qtyMin float64) []models.ThresholdCandidate {
	var out []models.ThresholdCandidate
	for i := range records {
		r := &records[i]
		if raw, ok := breaches(r.CallDollar, r.CallQty, dollarMin, qtyMin); ok {
			out = append(out, newThresholdCandidate(r, "Call", raw))
		}
		if raw, ok := breaches(r.PutDollar, r.PutQty, dollarMin, qtyMin); ok {
			out = append(out, newThresholdCandidate(r, "Put", raw))
		}
	}
	return out
}

// breaches returns the value that crossed its threshold; the dollar criterion
// wins when both fire.
func breaches(dollar, qty, dollarMin, qtyMin float64) (float64, bool) {
	if dollarMin > 0 && dollar > dollarMin {
		return dollar, true
	}
	if qtyMin > 0 && qty > qtyMin {
		return qty, true
	}
	return 0, false
}

func newThresholdCandidate(r *models.FlowRecord, field string, raw float64) models.ThresholdCandidate {
	return models.ThresholdCandidate{
		Side:        r.Side,
		Label:       r.Label(),
		Ticker:      r.Ticker,
		Field:       field,
		Date:        r.OrderDate,
		Time:        r.OrderTime,
		TradePrice:  r.TradePrice,
		TargetPrice: r.TargetPrice,
		CallDollar:  r.CallDollar,
		CallQty:     r.CallQty,
		PutDollar:   r.PutDollar,
		PutQty:      r.PutQty,
		Insights:    r.Insights,
		RawValue:    raw,
	}
}

// ThresholdKey is the dedup identity of a threshold alert: side, row label,
// breached field, and the raw breaching value. A row whose flow grows past
// the threshold again later in the day re-alerts, because the raw value is
// part of the identity.
func ThresholdKey(c models.ThresholdCandidate) string {
	return dedup.Key(string(c.Side), c.Label, c.Field,
		strconv.FormatFloat(c.RawValue, 'f', -1, 64))
}
