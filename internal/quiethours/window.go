// Package quiethours computes whether a daily time-of-day window is active and
// when it next ends. Windows may wrap past midnight; a window whose start and
// end are equal is never active.
package quiethours

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/hearth/internal/config"
)

const minutesPerDay = 24 * 60

// Clock is a time of day with minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Window is immutable once built.
type Window struct {
	Start Clock
	End   Clock
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Degenerate reports whether the window can never be active.
func (w Window) Degenerate() bool {
	return w.Start.minutes() == w.End.minutes()
}

// Wraps reports whether the window crosses midnight.
func (w Window) Wraps() bool {
	return w.Start.minutes() > w.End.minutes()
}

// ParseClock reads "HH:MM". Anything non-numeric in either part yields 00:00;
// callers never see a parse error. Out-of-range values are folded into a day.
func ParseClock(s string) Clock {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return Clock{}
	}
	h, errH := strconv.Atoi(strings.TrimSpace(parts[0]))
	m, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errH != nil || errM != nil || h < 0 || m < 0 {
		return Clock{}
	}
	total := (h*60 + m) % minutesPerDay
	return Clock{Hour: total / 60, Minute: total % 60}
}

func Parse(start, end string) Window {
	return Window{Start: ParseClock(start), End: ParseClock(end)}
}

// FromConfig builds the window configured for a workspace.
func FromConfig(cfg config.QuietHoursConfig, workspaceID string) Window {
	w := cfg.Window(workspaceID)
	return Parse(w.Start, w.End)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// IsActive evaluates the window against now's wall clock in now's location.
func IsActive(now time.Time, w Window) bool {
	start, end, cur := w.Start.minutes(), w.End.minutes(), minuteOfDay(now)

	switch {
	case start == end:
		return false
	case start < end:
		return cur >= start && cur < end
	default:
		return cur >= start || cur < end
	}
}

// NextEnd returns the next wall-clock instant at which the window's end time
// occurs: today if now is still before it, otherwise tomorrow. Seconds are
// zeroed.
func NextEnd(now time.Time, w Window) time.Time {
	end := time.Date(now.Year(), now.Month(), now.Day(), w.End.Hour, w.End.Minute, 0, 0, now.Location())
	if minuteOfDay(now) < w.End.minutes() {
		return end
	}
	return end.AddDate(0, 0, 1)
}

// DeferUntil returns when a non-urgent item raised at now may surface.
// Urgent items, and anything raised outside the window, surface immediately.
func DeferUntil(now time.Time, w Window, urgent bool) time.Time {
	if urgent || !IsActive(now, w) {
		return now
	}
	return NextEnd(now, w)
}
