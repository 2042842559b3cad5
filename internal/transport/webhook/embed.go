package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"scorebot/internal/card"
)

// Embed limits the webhook API enforces. Oversize content is truncated
// client-side rather than failing the whole delivery.
const (
	maxDescription = 4096
	maxFieldValue  = 1024
)

type payload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Thumbnail   *embedMedia  `json:"thumbnail,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embedMedia struct {
	URL string `json:"url"`
}

func marshalPayload(c card.Card, username string) ([]byte, error) {
	return json.Marshal(payload{
		Username: username,
		Embeds:   []embed{buildEmbed(c)},
	})
}

// buildEmbed maps a card onto webhook embed markup. The bar, note and table
// land in fenced blocks so alignment survives proportional fonts, and the
// next-refresh instant becomes a relative timestamp the client keeps live.
func buildEmbed(c card.Card) embed {
	var desc strings.Builder
	if c.Summary != "" {
		desc.WriteString("**" + c.Summary + "**")
	}
	if c.Bar != "" {
		desc.WriteString("\n" + codeBlock(c.Bar, maxDescription/2))
	}
	if c.Note != "" {
		desc.WriteString("\n" + codeBlock(c.Note, maxDescription/2))
	}
	if !c.NextRefresh.IsZero() {
		fmt.Fprintf(&desc, "\nNext refresh <t:%d:R>", c.NextRefresh.Unix())
	}

	e := embed{
		Title:       clampRunes(c.Title, 256),
		Description: clampRunes(desc.String(), maxDescription),
		Color:       c.Color,
	}
	if c.IconURL != "" {
		e.Thumbnail = &embedMedia{URL: c.IconURL}
	}
	for _, f := range c.Fields {
		e.Fields = append(e.Fields, embedField{
			Name:   clampRunes(f.Name, 256),
			Value:  clampRunes(f.Value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	if c.Table != "" {
		e.Fields = append(e.Fields, embedField{
			Name:  "Scoreboard",
			Value: codeBlock(c.Table, maxFieldValue),
		})
	}
	if c.Connecting > 0 {
		e.Footer = &embedFooter{Text: fmt.Sprintf("%d connecting…", c.Connecting)}
	}
	if !c.At.IsZero() {
		e.Timestamp = c.At.UTC().Format(time.RFC3339)
	}
	return e
}

// codeBlock wraps s in a fenced block, trimming s so the closing fence
// always survives the limit.
func codeBlock(s string, limit int) string {
	const overhead = 8 // len("```\n") + len("\n```")
	return "```\n" + clampRunes(s, limit-overhead) + "\n```"
}

func clampRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
