// Package schedule computes recurring send times in a fixed reference
// time zone. All "send at hour H" semantics are civil-time semantics in
// that zone, independent of server locale.
package schedule

import (
	"time"

	"github.com/rocketman0418/campaign-engine/internal/model"
)

// NextRun computes the next absolute send instant after now.
//
// It anchors on "today at sendHour" in the reference zone, then advances
// by one period. Naive fixed-offset math drifts by an hour across DST
// transitions, so the anchor and every advanced instant are re-checked
// against the zone and shifted until the civil hour is sendHour again.
// The result is always strictly after now; if clock skew would produce a
// past instant, one more period is added instead.
func NextRun(freq model.Frequency, customIntervalDays, sendHour int, now time.Time, zone *time.Location) time.Time {
	civil := now.In(zone)
	anchor := atHour(civil.Year(), civil.Month(), civil.Day(), sendHour, zone)

	next := advance(anchor, freq, customIntervalDays, sendHour, zone)
	for !next.After(now) {
		next = advance(next, freq, customIntervalDays, sendHour, zone)
	}
	return next
}

func advance(t time.Time, freq model.Frequency, customIntervalDays, sendHour int, zone *time.Location) time.Time {
	var next time.Time
	switch freq {
	case model.FrequencyDaily:
		next = t.AddDate(0, 0, 1)
	case model.FrequencyWeekly:
		next = t.AddDate(0, 0, 7)
	case model.FrequencyBiweekly:
		next = t.AddDate(0, 0, 14)
	case model.FrequencyMonthly:
		next = addMonthClamped(t, sendHour, zone)
	case model.FrequencyCustom:
		days := customIntervalDays
		if days < 1 {
			days = 1
		}
		next = t.AddDate(0, 0, days)
	default:
		next = t.AddDate(0, 0, 1)
	}
	return correctHour(next.In(zone), sendHour)
}

// atHour constructs the civil instant and verifies the round trip; across
// a DST transition the constructed instant can land on a different civil
// hour, in which case it is shifted by the signed difference.
func atHour(year int, month time.Month, day, sendHour int, zone *time.Location) time.Time {
	t := time.Date(year, month, day, sendHour, 0, 0, 0, zone)
	return correctHour(t, sendHour)
}

func correctHour(t time.Time, sendHour int) time.Time {
	if t.Hour() == sendHour {
		return t
	}
	return t.Add(time.Duration(sendHour-t.Hour()) * time.Hour)
}

// addMonthClamped advances one calendar month keeping the day-of-month,
// clamped when the target month is shorter (Jan 31 -> Feb 28/29, never a
// normalized Mar 2/3).
func addMonthClamped(t time.Time, sendHour int, zone *time.Location) time.Time {
	year, month, day := t.In(zone).Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return atHour(year, month, day, sendHour, zone)
}

func daysIn(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}
