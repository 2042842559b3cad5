// Package card renders server status snapshots into a presentation payload
// that destination backends (webhook embeds, Telegram text) map to their
// native markup. Everything in here is pure: no I/O, no clocks.
package card

import "time"

// Status colors as 24-bit RGB, understood natively by webhook embeds.
const (
	ColorOnline = 0x43B581
	ColorError  = 0xF04747
)

// Card is one rendered status (or error) message.
//
// Bar and Table are preformatted monospace blocks; backends wrap them in
// their code markup so column alignment survives proportional fonts.
// NextRefresh is an absolute instant; each backend renders its own marker
// (relative timestamp, clock time). A zero NextRefresh means "omit".
type Card struct {
	Title   string
	Color   int
	IconURL string

	Summary    string  // headline, e.g. "12/32 (38%)"
	Bar        string  // capacity bar, BarWidth glyphs
	Fields     []Field // small labelled facts (map, bots, address)
	Table      string  // scoreboard block, "" when no named players
	Connecting int     // players connected but not yet named
	Note       string  // error detail on error cards

	At          time.Time
	NextRefresh time.Time
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}
