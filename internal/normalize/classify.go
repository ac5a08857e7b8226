package normalize

import (
	"strings"

	"github.com/quantfold/flowsentry/internal/models"
)

// ClassifyInsight derives direction from free-text insight. Case-insensitive
// substring search, bullish checked before bearish; no match yields empty.
func ClassifyInsight(text string) models.Direction {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "bullish") {
		return models.Bullish
	}
	if strings.Contains(lower, "bearish") {
		return models.Bearish
	}
	return ""
}

// ClassifyOrder derives direction from trade identity: buying calls or
// selling puts is bullish, buying puts or selling calls is bearish.
func ClassifyOrder(side models.Side, isCall bool) models.Direction {
	if (side == models.Buying) == isCall {
		return models.Bullish
	}
	return models.Bearish
}

// RecordDirection resolves a record's direction for aggregation: the stored
// insight classification when present, otherwise the order-identity heuristic
// applied to the dominant instrument. Records with no flow stay unclassified.
func RecordDirection(r models.FlowRecord) models.Direction {
	if r.Direction != "" {
		return r.Direction
	}
	callFlow := r.CallDollar + r.CallQty
	putFlow := r.PutDollar + r.PutQty
	switch {
	case callFlow > putFlow:
		return ClassifyOrder(r.Side, true)
	case putFlow > callFlow:
		return ClassifyOrder(r.Side, false)
	default:
		return ""
	}
}
