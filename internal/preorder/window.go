package preorder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"genfity-floor-services/internal/utils"
)

const minutesPerDay = 24 * 60

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

var ErrInvalidClock = errors.New("time must be in HH:mm format")

func ParseClock(value string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return Clock{}, ErrInvalidClock
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, ErrInvalidClock
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, ErrInvalidClock
	}
	return Clock{Hour: h, Minute: m}, nil
}

func MustClock(value string) Clock {
	c, err := ParseClock(value)
	if err != nil {
		panic(fmt.Sprintf("preorder: %q: %v", value, err))
	}
	return c
}

func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Window is a recurring weekly pre-order window. End before Start means the
// window crosses midnight.
type Window struct {
	Enabled    bool   `json:"enabled"`
	Start      Clock  `json:"startTime"`
	End        Clock  `json:"endTime"`
	DaysOfWeek []int  `json:"daysOfWeek"`
	Timezone   string `json:"timezone,omitempty"`
}

func Disabled() Window {
	return Window{
		Start:      Clock{Hour: 9},
		End:        Clock{Hour: 17},
		DaysOfWeek: []int{0, 1, 2, 3, 4, 5, 6},
	}
}

func (w Window) allowsDay(day int) bool {
	for _, d := range w.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

func minutesOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func IsAllowed(w Window, now time.Time) bool {
	if !w.Enabled {
		return false
	}
	if !w.allowsDay(int(now.Weekday())) {
		return false
	}

	current := minutesOf(now)
	start := w.Start.Minutes()
	end := w.End.Minutes()
	if end < start {
		return current >= start || current <= end
	}
	return current >= start && current <= end
}

func atClock(day time.Time, c Clock) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// TimeUntilStart reports how long until the window next opens. ok is false
// when the window is disabled or has no days.
func TimeUntilStart(w Window, now time.Time) (time.Duration, bool) {
	if !w.Enabled || len(w.DaysOfWeek) == 0 {
		return 0, false
	}

	today := int(now.Weekday())
	if w.allowsDay(today) && minutesOf(now) < w.Start.Minutes() {
		return atClock(now, w.Start).Sub(now), true
	}

	for offset := 1; offset <= 7; offset++ {
		if w.allowsDay((today + offset) % 7) {
			day := now.AddDate(0, 0, offset)
			return atClock(day, w.Start).Sub(now), true
		}
	}
	return 0, false
}

// TimeUntilEnd reports how long the currently open window stays open.
func TimeUntilEnd(w Window, now time.Time) (time.Duration, bool) {
	if !IsAllowed(w, now) {
		return 0, false
	}
	end := atClock(now, w.End)
	if w.End.Minutes() < minutesOf(now) {
		end = atClock(now.AddDate(0, 0, 1), w.End)
	}
	return end.Sub(now), true
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatRemaining renders the largest whole unit of d.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour:
		return plural(int64(d/(24*time.Hour)), "day")
	case d >= time.Hour:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int64(d/time.Minute), "minute")
	default:
		return plural(int64(d/time.Second), "second")
	}
}

type Status struct {
	Enabled        bool           `json:"enabled"`
	Allowed        bool           `json:"allowed"`
	Now            time.Time      `json:"now"`
	Timezone       string         `json:"timezone"`
	UntilStart     *time.Duration `json:"untilStartNs,omitempty"`
	UntilStartText string         `json:"untilStart,omitempty"`
	UntilEnd       *time.Duration `json:"untilEndNs,omitempty"`
	UntilEndText   string         `json:"untilEnd,omitempty"`
}

func Evaluate(w Window, now time.Time) Status {
	st := Status{
		Enabled:  w.Enabled,
		Allowed:  IsAllowed(w, now),
		Now:      now,
		Timezone: now.Location().String(),
	}
	if st.Allowed {
		if d, ok := TimeUntilEnd(w, now); ok {
			st.UntilEnd = &d
			st.UntilEndText = FormatRemaining(d)
		}
		return st
	}
	if d, ok := TimeUntilStart(w, now); ok {
		st.UntilStart = &d
		st.UntilStartText = FormatRemaining(d)
	}
	return st
}

// Location resolves the window's timezone, then fallback, then UTC.
func (w Window) Location(fallback string) *time.Location {
	return utils.ResolveLocation(w.Timezone, fallback)
}
