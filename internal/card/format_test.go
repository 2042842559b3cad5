package card

import (
	"strings"
	"testing"
	"unicode/utf8"

	"scorebot/internal/source"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		secs int
		want string
	}{
		{0, "0s"},
		{-5, "0s"},
		{45, "45s"},
		{60, "1m"},
		{61, "1m 1s"},
		{3600, "1h"},
		{3605, "1h 5s"},
		{3661, "1h 1m 1s"},
		{7200, "2h"},
		{86400, "24h"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.secs); got != tc.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tc.secs, got, tc.want)
		}
	}
}

func TestPercentRounding(t *testing.T) {
	cases := []struct {
		humans, cap int
		want        int
	}{
		{12, 32, 38}, // 37.5 rounds away from zero
		{0, 32, 0},
		{32, 32, 100},
		{0, 0, 0},   // empty capacity guard
		{20, 16, 100}, // overfull clamps
		{-3, 16, 0},
		{1, 3, 33},
		{2, 3, 67},
	}
	for _, tc := range cases {
		if got := percent(tc.humans, tc.cap); got != tc.want {
			t.Errorf("percent(%d, %d) = %d, want %d", tc.humans, tc.cap, got, tc.want)
		}
	}
}

func TestCapacityBar(t *testing.T) {
	b := capacityBar(12, 32)
	if n := utf8.RuneCountInString(b); n != BarWidth {
		t.Fatalf("bar is %d glyphs, want %d", n, BarWidth)
	}
	// 40*12/32 = 15 filled slots.
	if got := strings.Count(b, string(barFilled)); got != 15 {
		t.Errorf("filled = %d, want 15", got)
	}
	if !strings.HasPrefix(b, string(barFilled)) || !strings.HasSuffix(b, string(barEmpty)) {
		t.Errorf("bar shape wrong: %q", b)
	}

	if got := capacityBar(0, 16); strings.ContainsRune(got, barFilled) {
		t.Errorf("empty server shows filled slots: %q", got)
	}
	if got := capacityBar(50, 16); strings.ContainsRune(got, barEmpty) {
		t.Errorf("overfull server shows empty slots: %q", got)
	}
}

func TestSortPlayersOrder(t *testing.T) {
	in := []source.Player{
		{Name: "idle-short", Score: 0, Time: 10},
		{Name: "idle-long", Score: 0, Time: 20},
		{Name: "vet", Score: 5, Time: 300},
		{Name: "fresh", Score: 5, Time: 30},
	}
	got := sortPlayers(in)
	want := []string{"fresh", "vet", "idle-long", "idle-short"}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("pos %d = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestSortPlayersDropsUnnamed(t *testing.T) {
	in := []source.Player{
		{Name: "", Score: 9, Time: 5},
		{Name: "  ", Score: 8, Time: 5},
		{Name: "solo", Score: 1, Time: 5},
	}
	got := sortPlayers(in)
	if len(got) != 1 || got[0].Name != "solo" {
		t.Fatalf("got %+v", got)
	}
	if n := connectingCount(in); n != 2 {
		t.Fatalf("connecting = %d, want 2", n)
	}
}

func TestScoreTableOverflow(t *testing.T) {
	ps := make([]source.Player, 35)
	for i := range ps {
		ps[i] = source.Player{Name: "player" + string(rune('a'+i%26)), Score: 35 - i, Time: 60}
	}
	table := scoreTable(sortPlayers(ps))

	lines := strings.Split(table, "\n")
	// Header + 30 rows + overflow line.
	if len(lines) != 32 {
		t.Fatalf("lines = %d, want 32", len(lines))
	}
	if lines[len(lines)-1] != "… and 5 more" {
		t.Errorf("overflow line = %q", lines[len(lines)-1])
	}
	if !strings.HasPrefix(lines[0], "Player") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestScoreTableEmpty(t *testing.T) {
	if got := scoreTable(nil); got != "" {
		t.Fatalf("table for nobody = %q", got)
	}
}

func TestDisplayNameTruncation(t *testing.T) {
	long := strings.Repeat("x", 25)
	got := displayName(long, 20)
	if n := utf8.RuneCountInString(got); n != 20 {
		t.Fatalf("display name %d runes, want 20", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("no ellipsis: %q", got)
	}
	if short := displayName("ok", 20); short != "ok" {
		t.Fatalf("short name mangled: %q", short)
	}
}
