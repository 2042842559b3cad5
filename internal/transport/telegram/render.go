package telegram

import (
	"fmt"

	"scorebot/internal/card"
	"scorebot/pkg/tghtml"
)

// maxTableRunes bounds the scoreboard block so a full card always fits the
// message limit with room for title, fields and tags to spare.
const maxTableRunes = 3000

// renderText lays a card out as Telegram HTML. The bar and the scoreboard go
// into preformatted blocks so column alignment survives; the next-refresh
// marker is a clock time, since Telegram has no client-rendered relative
// timestamps.
func renderText(c card.Card) string {
	parts := make([]tghtml.H, 0, 8)
	parts = append(parts, tghtml.B(c.Title))
	if c.Summary != "" {
		parts = append(parts, tghtml.Esc(c.Summary))
	}
	if c.Bar != "" {
		parts = append(parts, tghtml.Pre(c.Bar))
	}
	fields := make([]tghtml.H, 0, len(c.Fields))
	for _, f := range c.Fields {
		fields = append(fields, tghtml.JoinH(" ", tghtml.B(f.Name+":"), tghtml.Esc(f.Value)))
	}
	parts = append(parts, tghtml.JoinH("\n", fields...))
	if c.Table != "" {
		parts = append(parts, tghtml.Pre(tghtml.TruncRunes(c.Table, maxTableRunes)))
	}
	if c.Connecting > 0 {
		parts = append(parts, tghtml.I(fmt.Sprintf("%d connecting…", c.Connecting)))
	}
	if c.Note != "" {
		parts = append(parts, tghtml.Pre(c.Note))
	}
	if !c.NextRefresh.IsZero() {
		parts = append(parts, tghtml.I("Next refresh "+c.NextRefresh.Format("15:04:05")))
	}
	return tghtml.JoinH("\n", parts...).String()
}
