// Package streak computes consecutive-day completion streaks over a habit's
// check-in history. It is pure: callers fetch the logs, streak does the math.
package streak

import (
	"sort"
	"time"

	"github.com/habitloop/habitloop/backend/models"
)

// DayStart normalizes a timestamp to midnight UTC. All streak arithmetic and
// all stored log dates are at this granularity; comparing anything finer
// invites off-by-one errors from timezones and intra-day drift.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay returns midnight UTC of the day after t.
func NextDay(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

// Current returns the number of consecutive days, ending today, on which the
// habit has a completed log. Incomplete logs are ignored. A gap of one or more
// days halts the count; the walk does not skip over gaps and resume.
//
// The logs slice is not modified; today may carry any time-of-day component.
func Current(logs []models.HabitLog, today time.Time) int {
	completed := make([]models.HabitLog, 0, len(logs))
	for _, log := range logs {
		if log.Completed {
			completed = append(completed, log)
		}
	}
	if len(completed) == 0 {
		return 0
	}

	// Most recent first.
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].Date.After(completed[j].Date)
	})

	streak := 0
	day := DayStart(today)

	for _, log := range completed {
		logDate := DayStart(log.Date)
		diffDays := int(day.Sub(logDate).Hours() / 24)

		// The log must land exactly on "today minus streak days"; anything
		// further back is a gap and ends the streak.
		if diffDays != streak {
			break
		}
		streak++
	}

	return streak
}
