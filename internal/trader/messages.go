package trader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"paper_trader/internal/core"
	apperrors "paper_trader/pkg/errors"
)

func fillNotification(fill core.Fill, portfolio *core.Portfolio) core.Notification {
	return core.Notification{
		Level: core.NotifySuccess,
		Title: "Order Filled",
		Description: fmt.Sprintf("%s %d %s @ $%s (total $%s)",
			fill.Side, fill.Quantity, fill.Ticker,
			fill.Price.StringFixed(2), fill.Notional.StringFixed(2)),
		Fields: []core.NotifyField{
			{Name: "Cash", Value: "$" + portfolio.Cash.StringFixed(2), Inline: true},
			{Name: "Position", Value: fmt.Sprintf("%d %s", portfolio.Position(fill.Ticker), fill.Ticker), Inline: true},
		},
	}
}

// rejectionNotification is plain content: the message already names the
// order and the failed gate.
func rejectionNotification(rej core.Rejection) core.Notification {
	return core.Notification{
		Level: core.NotifyWarning,
		Plain: rej.Message,
	}
}

// summaryNotification is one compact per-cycle digest for the best-effort
// channels, one field per fill.
func summaryNotification(fills []core.Fill) core.Notification {
	n := core.Notification{
		Level:       core.NotifySuccess,
		Title:       "Fill Summary",
		Description: fmt.Sprintf("%d fill(s) this cycle", len(fills)),
		BestEffort:  true,
	}
	for _, f := range fills {
		n.Fields = append(n.Fields, core.NotifyField{
			Name:   fmt.Sprintf("%s %s", f.Side, f.Ticker),
			Value:  fmt.Sprintf("%d @ $%s = $%s", f.Quantity, f.Price.StringFixed(2), f.Notional.StringFixed(2)),
			Inline: true,
		})
	}
	return n
}

func priceNotification(ticker string, quotes map[string]decimal.Decimal) core.Notification {
	price, ok := quotes[ticker]
	if !ok {
		return core.Notification{
			Level: core.NotifyWarning,
			Plain: fmt.Sprintf("No price for `%s` right now.", ticker),
		}
	}
	return core.Notification{
		Level: core.NotifyInfo,
		Plain: fmt.Sprintf("%s: $%s", ticker, price.StringFixed(2)),
	}
}

func valuationNotification(title string, v core.Valuation) core.Notification {
	n := core.Notification{
		Level:       core.NotifyInfo,
		Title:       title,
		Description: fmt.Sprintf("NAV $%s (cash $%s)", v.NAV.StringFixed(2), v.Cash.StringFixed(2)),
	}
	for _, row := range v.Rows {
		n.Fields = append(n.Fields, core.NotifyField{
			Name:   row.Ticker,
			Value:  fmt.Sprintf("%d @ $%s = $%s", row.Quantity, row.Price.StringFixed(2), row.Value.StringFixed(2)),
			Inline: true,
		})
	}
	return n
}

// replyText flattens a notification into the plain text used for in-thread
// replies (issue comments).
func replyText(n core.Notification) string {
	if n.Plain != "" {
		return n.Plain
	}

	var b strings.Builder
	if n.Title != "" {
		fmt.Fprintf(&b, "**%s**", n.Title)
	}
	if n.Description != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(n.Description)
	}
	for _, f := range n.Fields {
		fmt.Fprintf(&b, "\n- %s: %s", f.Name, f.Value)
	}
	return b.String()
}

// isFatal reports whether an error must stop the process instead of waiting
// for the next cycle.
func isFatal(err error) bool {
	return errors.Is(err, apperrors.ErrPermissionDenied) ||
		errors.Is(err, apperrors.ErrMissingCredential)
}
