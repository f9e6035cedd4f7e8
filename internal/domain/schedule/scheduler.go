// Package schedule implements the scheduling bounded context: the pure
// frequency-to-clock-time translator, the Reminder entity materialized from
// each stored medication, dose logging, and the bounded active-reminder
// store scanned by the dispatch loop.  Everything in scheduler.go is a pure
// function over its inputs; the entities and stores carry the state.
package schedule

import (
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Slot grid
// ─────────────────────────────────────────────────────────────────────────────

// The platform models a day as three dosing slots plus a bedtime slot.
// Slot-qualified frequency labels ("twice daily (morning & night)") map to
// these fixed times; unqualified labels use the generic 09:00-anchored grid.
const (
	slotMorning   = "08:00"
	slotAfternoon = "14:00"
	slotNight     = "20:00"
	slotBedtime   = "22:00"

	// defaultReminderTime is the single reminder slot for frequencies the
	// classifier cannot interpret.
	defaultReminderTime = "09:00"
)

// canonicalTimes maps every frequency label the extraction pipeline can
// produce (lowercased) to its reminder grid, sorted ascending.  Labels with
// an empty grid schedule no reminders.  Raw frequency strings that bypass
// the interpreter are handled by the contains-analysis fallback in TimesFor.
var canonicalTimes = map[string][]string{
	"once daily (morning)":   {slotMorning},
	"once daily (afternoon)": {slotAfternoon},
	"once daily (night)":     {slotNight},

	"twice daily (morning & night)":     {slotMorning, slotNight},
	"twice daily (morning & afternoon)": {slotMorning, slotAfternoon},
	"twice daily (afternoon & night)":   {slotAfternoon, slotNight},
	"twice daily (2 morning & 2 night)": {slotMorning, slotNight},

	"three times daily (morning, afternoon & night)":     {slotMorning, slotAfternoon, slotNight},
	"four times daily (1 morning, 2 afternoon, 1 night)": {slotMorning, slotAfternoon, slotNight},

	"once daily":        {defaultReminderTime},
	"daily":             {defaultReminderTime},
	"twice daily":       {"09:00", "21:00"},
	"three times daily": {slotMorning, slotAfternoon, slotNight},
	"four times daily":  {"08:00", "12:00", "16:00", "20:00"},

	"every 6 hours":  {"00:00", "06:00", "12:00", "18:00"},
	"every 8 hours":  {"00:00", "08:00", "16:00"},
	"every 12 hours": {slotMorning, slotNight},

	"before meals": {slotMorning, slotAfternoon, slotNight},
	"after meals":  {slotMorning, slotAfternoon, slotNight},
	"at bedtime":   {slotBedtime},

	"as needed": {},
}

// ─────────────────────────────────────────────────────────────────────────────
// TimesFor
// ─────────────────────────────────────────────────────────────────────────────

// TimesFor translates a frequency label into the ordered set of daily
// reminder clock times: sorted ascending, duplicate-free, "HH:MM" 24-hour
// strings.  "As needed" frequencies yield an empty list (no scheduled
// reminders); anything unrecognizable yields the single default 09:00 slot.
//
// Canonical labels resolve through the fixed table above.  Raw strings that
// never went through the frequency interpreter (manual entry, legacy rows)
// are classified by contains-analysis, most specific marker first, so that
// "twice daily" can never be swallowed by the bare "daily" check.
func TimesFor(frequency string) []string {
	f := strings.ToLower(strings.TrimSpace(frequency))
	if f == "" {
		return []string{defaultReminderTime}
	}
	if times, ok := canonicalTimes[f]; ok {
		return cloneTimes(times)
	}
	return cloneTimes(analyzeTimes(f))
}

// cloneTimes copies a grid so callers can never mutate the shared tables.
// The copy is always non-nil: an empty grid means "no reminders", not
// "no answer".
func cloneTimes(ts []string) []string {
	out := make([]string, len(ts))
	copy(out, ts)
	return out
}

// analyzeTimes classifies a non-canonical frequency string.  Check order is
// load-bearing: slot qualifiers first, then medical abbreviations, then
// numeric timing codes, then as-needed markers, then the plain-English
// frequencies from most to least specific.
func analyzeTimes(f string) []string {
	morning := strings.Contains(f, "morning")
	afternoon := strings.Contains(f, "afternoon")
	night := strings.Contains(f, "night")

	switch {
	case morning && afternoon && night:
		return []string{slotMorning, slotAfternoon, slotNight}
	case morning && night:
		return []string{slotMorning, slotNight}
	case morning && afternoon:
		return []string{slotMorning, slotAfternoon}
	case afternoon && night:
		return []string{slotAfternoon, slotNight}
	case morning:
		return []string{slotMorning}
	case afternoon:
		return []string{slotAfternoon}
	case night:
		return []string{slotNight}
	}

	switch {
	case strings.Contains(f, "tds"):
		return []string{slotMorning, slotAfternoon, slotNight}
	case strings.Contains(f, "qid"), strings.Contains(f, "q6h"):
		return []string{"00:00", "06:00", "12:00", "18:00"}
	case strings.Contains(f, "q8h"):
		return []string{"00:00", "08:00", "16:00"}
	case strings.Contains(f, "q12h"), strings.Contains(f, "bid"):
		return []string{slotMorning, slotNight}
	}

	if times := timingCodeTimes(f); times != nil {
		return times
	}

	if strings.Contains(f, "as needed") || strings.Contains(f, "sos") || strings.Contains(f, "prn") {
		return []string{}
	}

	switch {
	case strings.Contains(f, "four times"):
		return []string{"08:00", "12:00", "16:00", "20:00"}
	case strings.Contains(f, "three times"):
		return []string{slotMorning, slotAfternoon, slotNight}
	case strings.Contains(f, "twice"):
		return []string{"09:00", "21:00"}
	case strings.Contains(f, "every 6 hour"):
		return []string{"00:00", "06:00", "12:00", "18:00"}
	case strings.Contains(f, "every 8 hour"):
		return []string{"00:00", "08:00", "16:00"}
	case strings.Contains(f, "every 12 hour"):
		return []string{slotMorning, slotNight}
	}

	return []string{defaultReminderTime}
}

// codeTimes pairs a numeric dose-triplet marker with its slot grid.  Checked
// in order; both dash- and space-separated spellings are accepted.
var codeTimes = []struct {
	code  string
	times []string
}{
	{"1-0-1", []string{slotMorning, slotNight}},
	{"1-1-1", []string{slotMorning, slotAfternoon, slotNight}},
	{"1-1-0", []string{slotMorning, slotAfternoon}},
	{"0-1-1", []string{slotAfternoon, slotNight}},
	{"1-0-0", []string{slotMorning}},
	{"0-0-1", []string{slotNight}},
	{"2-0-2", []string{slotMorning, slotNight}},
	{"1-2-1", []string{slotMorning, slotAfternoon, slotNight}},
}

// timingCodeTimes resolves raw numeric timing codes ("1-0-1", "1 0 1") that
// reached storage without interpretation.  Returns nil when no code matches.
func timingCodeTimes(f string) []string {
	for _, ct := range codeTimes {
		if strings.Contains(f, ct.code) || strings.Contains(f, strings.ReplaceAll(ct.code, "-", " ")) {
			return ct.times
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Dose cadence classification
// ─────────────────────────────────────────────────────────────────────────────

// DosesPerDay classifies a frequency label into its daily dose count:
// 4, 3, 2, or 1, with as-needed frequencies contributing 0 (nothing is
// "expected" of the user) and anything unrecognizable defaulting to 1.
// Specific markers are tested before generic ones for the same reason as in
// analyzeTimes.
func DosesPerDay(frequency string) int {
	f := strings.ToLower(strings.TrimSpace(frequency))
	switch {
	case strings.Contains(f, "as needed"), strings.Contains(f, "sos"), strings.Contains(f, "prn"):
		return 0
	case strings.Contains(f, "four times"), strings.Contains(f, "qid"),
		strings.Contains(f, "q6h"), strings.Contains(f, "every 6 hour"):
		return 4
	case strings.Contains(f, "three times"), strings.Contains(f, "tid"),
		strings.Contains(f, "tds"), strings.Contains(f, "q8h"),
		strings.Contains(f, "every 8 hour"),
		strings.Contains(f, "before meals"), strings.Contains(f, "after meals"):
		return 3
	case strings.Contains(f, "twice"), strings.Contains(f, "bid"),
		strings.Contains(f, "q12h"), strings.Contains(f, "every 12 hour"):
		return 2
	default:
		return 1
	}
}

// NextDose computes when the next dose falls due after a dose taken at
// lastTaken: 6, 8, 12, or 24 hours later depending on the frequency's daily
// cadence, defaulting to 24 hours (as-needed included — there is no shorter
// obligation to surface).
func NextDose(lastTaken time.Time, frequency string) time.Time {
	switch DosesPerDay(frequency) {
	case 4:
		return lastTaken.Add(6 * time.Hour)
	case 3:
		return lastTaken.Add(8 * time.Hour)
	case 2:
		return lastTaken.Add(12 * time.Hour)
	default:
		return lastTaken.Add(24 * time.Hour)
	}
}

// ExpectedDoses computes how many doses the frequency prescribes between
// since and now: whole elapsed days times the daily cadence.  A since in the
// future yields 0.  Used by compliance reporting against the count of logged
// doses over the same window.
func ExpectedDoses(frequency string, since time.Time) int {
	days := int(time.Since(since).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days * DosesPerDay(frequency)
}
