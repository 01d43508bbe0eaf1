package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "cdfplan/internal/log"
	"cdfplan/internal/model"
)

// floatingLayout is a local date-time without zone designator (RFC 5545
// "floating" time).
const floatingLayout = "20060102T150405"

const uidDomain = "cdfplan"

// uidSpace namespaces the deterministic event UIDs.
var uidSpace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte(uidDomain))

// Generator turns event records into an iCalendar document.
type Generator struct {
	// ProductID is written as PRODID.
	ProductID string

	// FallbackDay anchors Dateless events; they cover FallbackDay and end
	// the day after.
	FallbackDay time.Time

	// Now stamps DTSTAMP. If nil, time.Now is used.
	Now func() time.Time
}

// Generate renders events in input order. It reports false, and returns
// no document, when events is empty.
func (g Generator) Generate(events []model.EventRecord) (string, bool) {
	if len(events) == 0 {
		return "", false
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	stamp := now()

	cal := ical.NewCalendar()
	cal.SetProductId(g.ProductID)
	cal.SetCalscale("GREGORIAN")

	var timed, allDay, dateless int
	for i, rec := range events {
		e := cal.AddEvent(eventUID(i, rec))
		e.SetDtStampTime(stamp)
		e.SetSummary(rec.Title)
		e.SetDescription(rec.Description)
		e.SetLocation(rec.Location)

		switch s := Classify(rec).(type) {
		case Timed:
			e.SetProperty(ical.ComponentPropertyDtStart, s.Start.Format(floatingLayout))
			e.SetProperty(ical.ComponentPropertyDtEnd, s.End.Format(floatingLayout))
			timed++
		case AllDay:
			setWholeDay(e, s.Day)
			allDay++
		case Dateless:
			setWholeDay(e, g.FallbackDay)
			dateless++
		}
	}

	appLog.Debug("ics generated",
		"events", len(events),
		"timed", timed,
		"all_day", allDay,
		"dateless", dateless,
	)

	return cal.Serialize(ical.WithNewLineWindows), true
}

// setWholeDay writes a DATE-valued range; DTEND is exclusive.
func setWholeDay(e *ical.VEvent, day time.Time) {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	e.SetAllDayStartAt(d)
	e.SetAllDayEndAt(d.AddDate(0, 0, 1))
}

// eventUID is stable for the same record at the same position, so a
// re-import replaces events instead of duplicating them.
func eventUID(i int, rec model.EventRecord) string {
	key := strings.Join([]string{
		fmt.Sprint(i),
		rec.Title,
		deref(rec.Day),
		deref(rec.StartTime),
		deref(rec.EndTime),
	}, "\x1f")
	return uuid.NewSHA1(uidSpace, []byte(key)).String() + "@" + uidDomain
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
