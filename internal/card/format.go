package card

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"scorebot/internal/source"
)

// BarWidth is the total number of glyphs in a capacity bar.
const BarWidth = 40

const (
	barFilled = '█'
	barEmpty  = '░'
)

// maxTableRows bounds the scoreboard so a full 100-slot server still fits
// chat platform message limits. Overflow is summarized as "+N more".
const maxTableRows = 30

// FormatDuration renders whole seconds as "2h", "1h 1m 1s", "45s".
// Only populated units appear, and zero renders as "0s" rather than "".
func FormatDuration(secs int) string {
	if secs <= 0 {
		return "0s"
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60

	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, strconv.Itoa(h)+"h")
	}
	if m > 0 {
		parts = append(parts, strconv.Itoa(m)+"m")
	}
	if s > 0 {
		parts = append(parts, strconv.Itoa(s)+"s")
	}
	return strings.Join(parts, " ")
}

// percent is round(100*humans/cap) with the zero-capacity guard.
// math.Round rounds half away from zero, so 12/32 -> 38, not 37.
func percent(humans, cap int) int {
	if cap < 1 {
		cap = 1
	}
	p := int(math.Round(100 * float64(humans) / float64(cap)))
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p
}

// capacityBar renders BarWidth glyphs, round(BarWidth*humans/cap) of them
// filled. Same rounding rule as percent: half away from zero.
func capacityBar(humans, cap int) string {
	if cap < 1 {
		cap = 1
	}
	filled := int(math.Round(BarWidth * float64(humans) / float64(cap)))
	if filled < 0 {
		filled = 0
	}
	if filled > BarWidth {
		filled = BarWidth
	}
	var b strings.Builder
	b.Grow(BarWidth * 3)
	for i := 0; i < filled; i++ {
		b.WriteRune(barFilled)
	}
	for i := filled; i < BarWidth; i++ {
		b.WriteRune(barEmpty)
	}
	return b.String()
}

// sortPlayers returns the named players in scoreboard order: score
// descending; ties at score 0 longest-connected first, ties at a nonzero
// score shortest-connected first.
func sortPlayers(ps []source.Player) []source.Player {
	named := make([]source.Player, 0, len(ps))
	for _, p := range ps {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		named = append(named, p)
	}
	sort.SliceStable(named, func(i, j int) bool {
		a, b := named[i], named[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Score == 0 {
			return a.Time > b.Time
		}
		return a.Time < b.Time
	})
	return named
}

// connectingCount counts players the server reports without a name yet.
func connectingCount(ps []source.Player) int {
	n := 0
	for _, p := range ps {
		if strings.TrimSpace(p.Name) == "" {
			n++
		}
	}
	return n
}

// scoreTable renders the sorted players as three aligned columns.
// Returns "" when there is nobody to show.
func scoreTable(ps []source.Player) string {
	if len(ps) == 0 {
		return ""
	}

	shown := ps
	more := 0
	if len(shown) > maxTableRows {
		more = len(shown) - maxTableRows
		shown = shown[:maxTableRows]
	}

	// fmt pads %s by rune count, so widths are measured the same way.
	const nameCap = 20
	nameW := len("Player")
	scoreW := len("Score")
	for _, p := range shown {
		if n := utf8.RuneCountInString(displayName(p.Name, nameCap)); n > nameW {
			nameW = n
		}
		if n := len(strconv.Itoa(p.Score)); n > scoreW {
			scoreW = n
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %*s  %s\n", nameW, "Player", scoreW, "Score", "Time")
	for _, p := range shown {
		fmt.Fprintf(&b, "%-*s  %*d  %s\n", nameW, displayName(p.Name, nameCap), scoreW, p.Score, FormatDuration(p.Time))
	}
	if more > 0 {
		fmt.Fprintf(&b, "… and %d more\n", more)
	}
	return strings.TrimRight(b.String(), "\n")
}

func displayName(name string, max int) string {
	name = strings.TrimSpace(name)
	rs := []rune(name)
	if len(rs) <= max {
		return name
	}
	return string(rs[:max-1]) + "…"
}
