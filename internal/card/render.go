package card

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"scorebot/internal/source"
)

// errNoteLimit caps how much of an error message ends up on the card.
const errNoteLimit = 1000

// Options carries deployment-level presentation knobs.
type Options struct {
	Title   string // overrides the server-reported hostname
	IconURL string
}

// Status renders one healthy snapshot. refreshIn is the distance to the
// next scheduled poll; the marker on the card is now+refreshIn so it can
// never drift from the trigger cadence.
func Status(st *source.ServerState, opts Options, now time.Time, refreshIn time.Duration) Card {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = st.Hostname
	}

	c := Card{
		Title:   title,
		Color:   ColorOnline,
		IconURL: opts.IconURL,
		Summary: fmt.Sprintf("%d/%d (%d%%)", st.Humans, st.MaxPlayers, percent(st.Humans, st.MaxPlayers)),
		Bar:     capacityBar(st.Humans, st.MaxPlayers),
		At:      now,
	}
	if refreshIn > 0 {
		c.NextRefresh = now.Add(refreshIn)
	}

	if m := strings.TrimSpace(st.Map); m != "" {
		c.Fields = append(c.Fields, Field{Name: "Map", Value: m, Inline: true})
	}
	if st.Bots > 0 {
		c.Fields = append(c.Fields, Field{Name: "Bots", Value: strconv.Itoa(st.Bots), Inline: true})
	}
	c.Fields = append(c.Fields, Field{Name: "Address", Value: st.Address, Inline: true})

	c.Table = scoreTable(sortPlayers(st.Players))
	c.Connecting = connectingCount(st.Players)
	return c
}

// Error renders the unreachable-server card pushed after the consecutive
// failure threshold is crossed.
func Error(fetchErr error, consecutive int, opts Options, now time.Time, refreshIn time.Duration) Card {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Server status"
	}

	note := "unknown error"
	if fetchErr != nil {
		note = fetchErr.Error()
	}
	if rs := []rune(note); len(rs) > errNoteLimit {
		note = string(rs[:errNoteLimit]) + "…"
	}

	c := Card{
		Title:   title + " (unreachable)",
		Color:   ColorError,
		IconURL: opts.IconURL,
		Summary: "Status endpoint is not responding.",
		Note:    note,
		At:      now,
		Fields: []Field{
			{Name: "Consecutive failures", Value: strconv.Itoa(consecutive), Inline: true},
		},
	}
	if refreshIn > 0 {
		c.NextRefresh = now.Add(refreshIn)
	}
	return c
}
