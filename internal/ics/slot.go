package ics

import (
	"strings"
	"time"

	"cdfplan/internal/model"
)

// Slot is where an event sits on the calendar. It is one of Timed, AllDay
// or Dateless.
type Slot interface {
	slot()
}

// Timed is a day with a start and end time of day. Start and End carry the
// clock on Day's date; End may be before Start.
type Timed struct {
	Start time.Time
	End   time.Time
}

// AllDay covers a single whole day.
type AllDay struct {
	Day time.Time
}

// Dateless has no date of its own and is anchored to the fallback day.
type Dateless struct{}

func (Timed) slot()    {}
func (AllDay) slot()   {}
func (Dateless) slot() {}

var clockLayouts = []string{"15:04", "15:04:05"}

// Classify decides the Slot of rec. A missing or unparsable day gives
// Dateless; a day with only one usable time gives AllDay.
func Classify(rec model.EventRecord) Slot {
	day, ok := parseDay(rec.Day)
	if !ok {
		return Dateless{}
	}

	start, okStart := parseClock(rec.StartTime)
	end, okEnd := parseClock(rec.EndTime)
	if !okStart || !okEnd {
		return AllDay{Day: day}
	}

	return Timed{
		Start: onDay(day, start),
		End:   onDay(day, end),
	}
}

func parseDay(v *string) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(*v))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseClock(v *string) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	s := strings.TrimSpace(*v)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// onDay puts the hour and minute of clock on day. Seconds are dropped: the
// exported timestamps always end in 00.
func onDay(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
}
