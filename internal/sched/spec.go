// Package sched parses poll schedules and turns them into cycle triggers.
//
// A schedule is either a cron expression (5 or 6 fields, descriptors,
// @every — see crontab.guru) or a plain Go duration:
//
//	"*/5 * * * *"   every five minutes, on the clock grid
//	"@every 90s"    every 90 seconds
//	"2m30s"         every 2m30s
package sched

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// minInterval rejects hot-loop schedules before they reach the trigger.
const minInterval = time.Second

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Spec is one parsed schedule: a cron expression or a fixed interval.
type Spec struct {
	raw   string
	cron  cron.Schedule
	every time.Duration
}

func (s Spec) String() string { return s.raw }
func (s Spec) IsZero() bool   { return s.cron == nil && s.every == 0 }

// Next returns the first activation strictly after t.
func (s Spec) Next(t time.Time) time.Time {
	if s.cron != nil {
		return s.cron.Next(t)
	}
	return t.Add(s.every)
}

// Parse accepts a cron expression or a Go duration. Cron expressions are
// evaluated in loc (nil means local time) unless they carry their own
// CRON_TZ= override.
func Parse(raw string, loc *time.Location) (Spec, error) {
	r := strings.TrimSpace(raw)
	if r == "" {
		return Spec{}, errors.New("sched: empty schedule")
	}
	if rest, ok := strings.CutPrefix(r, "cron:"); ok {
		return parseCron(strings.TrimSpace(rest), loc, raw)
	}
	if strings.ContainsAny(r, " \t") || strings.HasPrefix(r, "@") ||
		strings.HasPrefix(r, "TZ=") || strings.HasPrefix(r, "CRON_TZ=") {
		return parseCron(r, loc, raw)
	}

	d, err := time.ParseDuration(r)
	if err != nil {
		return Spec{}, fmt.Errorf("sched: %q is neither a cron expression nor a duration", raw)
	}
	if d < minInterval {
		return Spec{}, fmt.Errorf("sched: interval %s below minimum %s", d, minInterval)
	}
	return Spec{raw: raw, every: d}, nil
}

func parseCron(expr string, loc *time.Location, raw string) (Spec, error) {
	if loc != nil && !strings.HasPrefix(expr, "TZ=") && !strings.HasPrefix(expr, "CRON_TZ=") {
		expr = "CRON_TZ=" + loc.String() + " " + expr
	}
	sc, err := cronParser.Parse(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("sched: parse cron %q: %w", raw, err)
	}
	return Spec{raw: raw, cron: sc}, nil
}
