package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/habitloop/habitloop/backend/models"
)

var today = time.Date(2024, time.March, 15, 17, 42, 3, 0, time.UTC)

// logsFor builds completed logs for the given day offsets relative to today
// (0 = today, 1 = yesterday, ...), in no particular order.
func logsFor(offsets ...int) []models.HabitLog {
	logs := make([]models.HabitLog, 0, len(offsets))
	for _, off := range offsets {
		logs = append(logs, models.HabitLog{
			Date:      DayStart(today).AddDate(0, 0, -off),
			Completed: true,
		})
	}
	return logs
}

func TestCurrentEmptyHistory(t *testing.T) {
	assert.Equal(t, 0, Current(nil, today))
	assert.Equal(t, 0, Current([]models.HabitLog{}, today))
}

func TestCurrentTodayOnly(t *testing.T) {
	assert.Equal(t, 1, Current(logsFor(0), today))
}

func TestCurrentThreeConsecutiveDays(t *testing.T) {
	// Today, yesterday, and the day before; nothing earlier.
	assert.Equal(t, 3, Current(logsFor(0, 1, 2), today))
}

func TestCurrentNoTrailingMatch(t *testing.T) {
	// A log only two days ago: nothing for today, so no streak at all.
	assert.Equal(t, 0, Current(logsFor(2), today))
}

func TestCurrentGapCapsStreak(t *testing.T) {
	// Today and yesterday, then a gap, then three more days. The gap halts
	// the walk; the earlier run does not resume the count.
	assert.Equal(t, 2, Current(logsFor(0, 1, 3, 4, 5), today))
}

func TestCurrentLongRunWithoutGaps(t *testing.T) {
	offsets := make([]int, 30)
	for i := range offsets {
		offsets[i] = i
	}
	assert.Equal(t, 30, Current(logsFor(offsets...), today))
}

func TestCurrentIgnoresIncompleteLogs(t *testing.T) {
	logs := logsFor(1, 2)
	logs = append(logs, models.HabitLog{Date: DayStart(today), Completed: false})
	// Today's log exists but is not completed, so the streak never starts.
	assert.Equal(t, 0, Current(logs, today))
}

func TestCurrentUnsortedInput(t *testing.T) {
	assert.Equal(t, 4, Current(logsFor(2, 0, 3, 1), today))
}

func TestCurrentStripsTimeOfDay(t *testing.T) {
	// Logs carrying stray intra-day timestamps still count at day granularity.
	logs := []models.HabitLog{
		{Date: DayStart(today).Add(23*time.Hour + 59*time.Minute), Completed: true},
		{Date: DayStart(today).AddDate(0, 0, -1).Add(5 * time.Minute), Completed: true},
	}
	assert.Equal(t, 2, Current(logs, today))
}

func TestDayStart(t *testing.T) {
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), DayStart(today))
	assert.Equal(t, time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC), NextDay(today))

	// Non-UTC wall clock times normalize on their UTC calendar day.
	loc := time.FixedZone("UTC+5", 5*3600)
	late := time.Date(2024, time.March, 15, 2, 30, 0, 0, loc) // 21:30 March 14 UTC
	assert.Equal(t, time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC), DayStart(late))
}
