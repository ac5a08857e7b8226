package notify

import (
	"fmt"
	"strings"

	"github.com/quantfold/flowsentry/internal/models"
)

// FormatDollar renders a dollar amount compactly: $1.2B, $3.5M, $750K, $900.
func FormatDollar(v float64) string {
	switch {
	case v >= 1e9:
		return trimZero(fmt.Sprintf("$%.1fB", v/1e9))
	case v >= 1e6:
		return trimZero(fmt.Sprintf("$%.1fM", v/1e6))
	case v >= 1e3:
		return trimZero(fmt.Sprintf("$%.1fK", v/1e3))
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

// FormatQty renders a contract quantity compactly: 1.5M, 12K, 340.
func FormatQty(v float64) string {
	switch {
	case v >= 1e6:
		return trimZero(fmt.Sprintf("%.1fM", v/1e6))
	case v >= 1e3:
		return trimZero(fmt.Sprintf("%.1fK", v/1e3))
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// trimZero drops a redundant ".0" before the magnitude suffix.
func trimZero(s string) string {
	return strings.Replace(s, ".0", "", 1)
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func directionEmoji(d models.Direction) string {
	switch d {
	case models.Bullish:
		return "🟢"
	case models.Bearish:
		return "🔴"
	default:
		return "⚪️"
	}
}

// FormatThreshold renders a threshold alert.
func FormatThreshold(c models.ThresholdCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>Large %s Flow — %s side</b>\n", c.Side, c.Field)
	fmt.Fprintf(&b, "<b>%s</b>\n", escapeHTML(c.Label))
	fmt.Fprintf(&b, "📞 Calls: %s (%s)  |  📋 Puts: %s (%s)\n",
		FormatDollar(c.CallDollar), FormatQty(c.CallQty),
		FormatDollar(c.PutDollar), FormatQty(c.PutQty))
	if c.Date != "" || c.Time != "" {
		fmt.Fprintf(&b, "🕒 %s\n", escapeHTML(strings.TrimSpace(c.Date+" "+c.Time)))
	}
	if c.TradePrice != "" {
		line := "💵 Trade @ " + escapeHTML(c.TradePrice)
		if c.TargetPrice != "" {
			line += " → PT " + escapeHTML(c.TargetPrice)
		}
		b.WriteString(line + "\n")
	}
	if c.Insights != "" {
		fmt.Fprintf(&b, "💡 %s\n", escapeHTML(c.Insights))
	}
	return b.String()
}

// FormatNovelty renders a new-row alert for an intraday section.
func FormatNovelty(c models.NoveltyCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 <b>%s</b>\n", escapeHTML(c.Section))
	fmt.Fprintf(&b, "<b>%s</b>\n", escapeHTML(c.Label))
	fmt.Fprintf(&b, "📞 Calls: %s (%s)  |  📋 Puts: %s (%s)\n",
		FormatDollar(c.CallDollar), FormatQty(c.CallQty),
		FormatDollar(c.PutDollar), FormatQty(c.PutQty))
	if c.Time != "" {
		fmt.Fprintf(&b, "🕒 %s\n", escapeHTML(c.Time))
	}
	if c.TradePrice != "" {
		line := "💵 Trade @ " + escapeHTML(c.TradePrice)
		if c.TargetPrice != "" {
			line += " → PT " + escapeHTML(c.TargetPrice)
		}
		b.WriteString(line + "\n")
	}
	if c.Insights != "" {
		fmt.Fprintf(&b, "💡 %s\n", escapeHTML(c.Insights))
	}
	return b.String()
}

// FormatConfirmation renders a multi-source agreement alert.
func FormatConfirmation(c models.Confirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s Confirmed %s</b>\n\n", directionEmoji(c.Direction), escapeHTML(c.Ticker), c.Direction)

	writeAgg := func(name string, a models.TickerAggregate) {
		fmt.Fprintf(&b, "<b>%s</b>: %s across %d orders\n", name, a.Direction, a.Records)
		fmt.Fprintf(&b, "   📞 %s (%s)  |  📋 %s (%s)\n",
			FormatDollar(a.CallDollar), FormatQty(a.CallQty),
			FormatDollar(a.PutDollar), FormatQty(a.PutQty))
	}
	writeAgg("Near-term", c.NearTerm)
	writeAgg("Floor", c.Floor)

	if c.History != nil {
		fmt.Fprintf(&b, "\n<b>History</b>: %s bull vs %s bear",
			FormatDollar(c.History.BullishDollar), FormatDollar(c.History.BearishDollar))
		if c.HistAligned != nil {
			if *c.HistAligned {
				b.WriteString(" — aligned ✅")
			} else {
				opposing := c.History.BullishCount
				if c.Direction == models.Bullish {
					opposing = c.History.BearishCount
				}
				fmt.Fprintf(&b, " — ⚠️ CAUTION: %d opposing historical order(s)", opposing)
			}
		}
		b.WriteString("\n")
	}

	if len(c.ExpiryFlow) > 0 {
		b.WriteString("\n<b>Flow by expiry</b>\n")
		for _, ef := range c.ExpiryFlow {
			net := ef.BullishDollar - ef.BearishDollar
			sign := "+"
			if net < 0 {
				sign = "-"
				net = -net
			}
			fmt.Fprintf(&b, "   %s: %s%s %s\n", escapeHTML(ef.Label), sign, FormatDollar(net), ef.Direction)
		}
	}
	return b.String()
}

// FormatOpposite renders an opposite-side reconciliation alert.
func FormatOpposite(c models.OppositeCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚔️ <b>Opposite-Side Match — %s</b>\n", escapeHTML(c.Record.Ticker))
	fmt.Fprintf(&b, "New %s order: <b>%s</b>\n", c.Record.Side, escapeHTML(c.Record.Label()))
	fmt.Fprintf(&b, "📞 %s (%s)  |  📋 %s (%s)\n\n",
		FormatDollar(c.Record.CallDollar), FormatQty(c.Record.CallQty),
		FormatDollar(c.Record.PutDollar), FormatQty(c.Record.PutQty))

	b.WriteString("<b>Matching historical orders</b>\n")
	for _, m := range c.Matches {
		fmt.Fprintf(&b, "   %s [%s] %s — %s\n",
			m.Record.Side, escapeHTML(m.Record.Source), escapeHTML(m.Record.Label()), escapeHTML(m.Reason))
	}
	return b.String()
}

// FormatSignal renders a signal cell transition alert.
func FormatSignal(label, previous, current string) string {
	if previous == "" {
		return fmt.Sprintf("📟 <b>%s signal</b>: %s", escapeHTML(label), escapeHTML(current))
	}
	return fmt.Sprintf("📟 <b>%s signal changed</b>: %s → %s",
		escapeHTML(label), escapeHTML(previous), escapeHTML(current))
}
