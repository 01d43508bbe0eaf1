package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdfplan/internal/model"
)

func ptr(s string) *string { return &s }

func testGenerator() Generator {
	return Generator{
		ProductID:   "-//test//cdfplan//EN",
		FallbackDay: time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC),
		Now: func() time.Time {
			return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
		},
	}
}

func TestGenerate_EmptyIsAbsent(t *testing.T) {
	g := testGenerator()

	doc, ok := g.Generate(nil)
	assert.False(t, ok)
	assert.Empty(t, doc)

	doc, ok = g.Generate([]model.EventRecord{})
	assert.False(t, ok)
	assert.Empty(t, doc)
}

func TestGenerate_TimedEvent(t *testing.T) {
	doc, ok := testGenerator().Generate([]model.EventRecord{{
		Title:     "Setup",
		Day:       ptr("2026-04-03"),
		StartTime: ptr("08:00"),
		EndTime:   ptr("10:00"),
	}})
	require.True(t, ok)

	assert.Contains(t, doc, "DTSTART:20260403T080000\r\n")
	assert.Contains(t, doc, "DTEND:20260403T100000\r\n")
	assert.Contains(t, doc, "SUMMARY:Setup\r\n")
	assert.NotContains(t, doc, "T080000Z")
	assert.NotContains(t, doc, "TZID")
}

func TestGenerate_Header(t *testing.T) {
	doc, ok := testGenerator().Generate([]model.EventRecord{{Title: "x"}})
	require.True(t, ok)

	lines := strings.Split(doc, "\r\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//cdfplan//EN",
		"CALSCALE:GREGORIAN",
	}, lines[:4])
	assert.True(t, strings.HasSuffix(doc, "END:VCALENDAR\r\n"))
}

func TestGenerate_InvertedRangePassesThrough(t *testing.T) {
	doc, ok := testGenerator().Generate([]model.EventRecord{{
		Title:     "Night shift",
		Day:       ptr("2026-04-04"),
		StartTime: ptr("22:00"),
		EndTime:   ptr("02:00"),
	}})
	require.True(t, ok)

	assert.Contains(t, doc, "DTSTART:20260404T220000\r\n")
	assert.Contains(t, doc, "DTEND:20260404T020000\r\n")
}

func TestGenerate_SecondsAreZeroed(t *testing.T) {
	doc, ok := testGenerator().Generate([]model.EventRecord{{
		Title:     "Briefing",
		Day:       ptr("2026-04-03"),
		StartTime: ptr("07:45:30"),
		EndTime:   ptr("08:15:59"),
	}})
	require.True(t, ok)

	assert.Contains(t, doc, "DTSTART:20260403T074500\r\n")
	assert.Contains(t, doc, "DTEND:20260403T081500\r\n")
}

func TestGenerate_AllDayRollover(t *testing.T) {
	tests := []struct {
		name      string
		rec       model.EventRecord
		wantStart string
		wantEnd   string
	}{
		{
			name:      "no times",
			rec:       model.EventRecord{Title: "Rest", Day: ptr("2026-04-05")},
			wantStart: "20260405",
			wantEnd:   "20260406",
		},
		{
			name:      "end of month",
			rec:       model.EventRecord{Title: "Inventory", Day: ptr("2026-01-31")},
			wantStart: "20260131",
			wantEnd:   "20260201",
		},
		{
			name:      "end of year",
			rec:       model.EventRecord{Title: "Party", Day: ptr("2026-12-31")},
			wantStart: "20261231",
			wantEnd:   "20270101",
		},
		{
			name:      "only start time",
			rec:       model.EventRecord{Title: "Half", Day: ptr("2026-02-28"), StartTime: ptr("09:00")},
			wantStart: "20260228",
			wantEnd:   "20260301",
		},
		{
			name:      "only end time",
			rec:       model.EventRecord{Title: "Half", Day: ptr("2028-02-28"), EndTime: ptr("09:00")},
			wantStart: "20280228",
			wantEnd:   "20280229",
		},
		{
			name:      "unparsable time",
			rec:       model.EventRecord{Title: "Odd", Day: ptr("2026-04-03"), StartTime: ptr("soon"), EndTime: ptr("10:00")},
			wantStart: "20260403",
			wantEnd:   "20260404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, ok := testGenerator().Generate([]model.EventRecord{tt.rec})
			require.True(t, ok)

			assert.Contains(t, doc, "VALUE=DATE:"+tt.wantStart+"\r\n")
			assert.Contains(t, doc, "VALUE=DATE:"+tt.wantEnd+"\r\n")
			assert.NotContains(t, doc, "T0900")
		})
	}
}

func TestGenerate_DatelessUsesFallback(t *testing.T) {
	tests := []model.EventRecord{
		{Title: "Training"},
		{Title: "Training", StartTime: ptr("08:00"), EndTime: ptr("10:00")},
		{Title: "Training", Day: ptr("someday")},
	}

	for _, rec := range tests {
		doc, ok := testGenerator().Generate([]model.EventRecord{rec})
		require.True(t, ok)

		assert.Contains(t, doc, "VALUE=DATE:20260402\r\n")
		assert.Contains(t, doc, "VALUE=DATE:20260403\r\n")
		assert.NotContains(t, doc, "T080000")
	}
}

func TestGenerate_EmptyTextFieldsStillEmitted(t *testing.T) {
	doc, ok := testGenerator().Generate([]model.EventRecord{{Title: "Solo"}})
	require.True(t, ok)

	assert.Contains(t, doc, "DESCRIPTION:\r\n")
	assert.Contains(t, doc, "LOCATION:\r\n")
}

func TestGenerate_OrderAndDeterminism(t *testing.T) {
	events := []model.EventRecord{
		{Title: "Zulu", Day: ptr("2026-04-05"), StartTime: ptr("10:00"), EndTime: ptr("11:00")},
		{Title: "Alpha", Day: ptr("2026-04-03")},
		{Title: "Alpha", Day: ptr("2026-04-03")},
		{Title: "Mike"},
	}
	g := testGenerator()

	first, ok := g.Generate(events)
	require.True(t, ok)
	second, ok := g.Generate(events)
	require.True(t, ok)
	assert.Equal(t, first, second)

	parsed, err := Inspect([]byte(first))
	require.NoError(t, err)
	require.Len(t, parsed, len(events))
	for i, ev := range parsed {
		assert.Equal(t, events[i].Title, ev.Summary, "block %d", i)
	}
	assert.NotEqual(t, parsed[1].UID, parsed[2].UID)

	assert.Equal(t, time.Date(2026, time.April, 5, 10, 0, 0, 0, time.UTC), parsed[0].Start)
	assert.False(t, parsed[0].AllDay)
	assert.True(t, parsed[1].AllDay)
	assert.Equal(t, time.Date(2026, time.April, 4, 0, 0, 0, 0, time.UTC), parsed[1].End)
	assert.Equal(t, time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC), parsed[3].Start)
}

func TestClassify(t *testing.T) {
	assert.IsType(t, Dateless{}, Classify(model.EventRecord{}))
	assert.IsType(t, AllDay{}, Classify(model.EventRecord{Day: ptr("2026-04-03")}))

	s := Classify(model.EventRecord{Day: ptr("2026-04-03"), StartTime: ptr("08:00"), EndTime: ptr("10:30")})
	timed, ok := s.(Timed)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.April, 3, 8, 0, 0, 0, time.UTC), timed.Start)
	assert.Equal(t, time.Date(2026, time.April, 3, 10, 30, 0, 0, time.UTC), timed.End)
}

func TestInspect_Empty(t *testing.T) {
	_, err := Inspect(nil)
	assert.Error(t, err)
}

func TestGenerate_CRLFLineEndings(t *testing.T) {
	doc, ok := testGenerator().Generate([]model.EventRecord{
		{Title: "Setup", Day: ptr("2026-04-03"), StartTime: ptr("08:00"), EndTime: ptr("10:00")},
		{Title: "Teardown", Day: ptr("2026-04-05")},
	})
	require.True(t, ok)

	require.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n"))
	bare := strings.ReplaceAll(doc, "\r\n", "")
	assert.NotContains(t, bare, "\n")
	assert.NotContains(t, bare, "\r")
}

func TestGenerate_EscapesText(t *testing.T) {
	doc, ok := testGenerator().Generate([]model.EventRecord{{
		Title:       "A, B; C\\D",
		Description: "line1\nline2",
		Location:    "Hall 1, gate; 2",
		Day:         ptr("2026-04-03"),
	}})
	require.True(t, ok)

	assert.Contains(t, doc, `SUMMARY:A\, B\; C\\D`+"\r\n")
	assert.Contains(t, doc, `DESCRIPTION:line1\nline2`+"\r\n")
	assert.Contains(t, doc, `LOCATION:Hall 1\, gate\; 2`+"\r\n")
}
