package checkin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/habitloop/habitloop/backend/errs"
	"github.com/habitloop/habitloop/backend/models"
	storage "github.com/habitloop/habitloop/backend/storage/persistent"
	"github.com/habitloop/habitloop/backend/streak"
)

type fixture struct {
	store   *storage.MemoryStorage
	svc     *Service
	ownerID primitive.ObjectID
	habit   *models.Habit
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStorage()
	ownerID := primitive.NewObjectID()
	now := time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

	habit, err := store.AddHabit(context.Background(), &models.Habit{
		UserID:    ownerID,
		Title:     "Run",
		Category:  "fitness",
		Frequency: models.FrequencyDaily,
		Priority:  models.PriorityMedium,
	})
	require.NoError(t, err)

	f := &fixture{store: store, ownerID: ownerID, habit: habit, now: now}
	f.svc = NewServiceAt(store, nil, func() time.Time { return f.now })
	return f
}

func (f *fixture) reloadHabit(t *testing.T) *models.Habit {
	t.Helper()
	habit, err := f.store.FindHabit(context.Background(), bson.M{"_id": f.habit.ID})
	require.NoError(t, err)
	return habit
}

func TestCheckInFirstTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.CheckIn(ctx, f.ownerID.Hex(), f.habit.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streak)
	assert.Equal(t, 1, result.LongestStreak)
	assert.True(t, result.Log.Completed)
	assert.Equal(t, streak.DayStart(f.now), result.Log.Date)

	habit := f.reloadHabit(t)
	assert.Equal(t, 1, habit.Streak)
	assert.Equal(t, 1, habit.LongestStreak)
}

func TestCheckInTwiceSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, f.ownerID.Hex(), f.habit.ID.Hex())
	require.NoError(t, err)

	_, err = f.svc.CheckIn(ctx, f.ownerID.Hex(), f.habit.ID.Hex())
	assert.ErrorIs(t, err, errs.ErrAlreadyCheckedIn)

	// Exactly one log for the (habit, day) pair afterwards.
	count, err := f.store.LogCount(ctx, bson.M{"habit_id": f.habit.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// The streak is untouched by the rejected attempt.
	assert.Equal(t, 1, f.reloadHabit(t).Streak)
}

func TestCheckInAccumulatesConsecutiveDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for day := 0; day < 3; day++ {
		result, err := f.svc.CheckIn(ctx, f.ownerID.Hex(), f.habit.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, day+1, result.Streak)
		f.now = f.now.AddDate(0, 0, 1)
	}

	habit := f.reloadHabit(t)
	assert.Equal(t, 3, habit.Streak)
	assert.Equal(t, 3, habit.LongestStreak)
}

func TestLongestStreakSurvivesReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Build a 3-day streak.
	for day := 0; day < 3; day++ {
		_, err := f.svc.CheckIn(ctx, f.ownerID.Hex(), f.habit.ID.Hex())
		require.NoError(t, err)
		f.now = f.now.AddDate(0, 0, 1)
	}

	// Skip a day; the next check-in starts a fresh streak of 1.
	f.now = f.now.AddDate(0, 0, 1)
	result, err := f.svc.CheckIn(ctx, f.ownerID.Hex(), f.habit.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streak)
	assert.Equal(t, 3, result.LongestStreak)

	habit := f.reloadHabit(t)
	assert.Equal(t, 1, habit.Streak)
	assert.Equal(t, 3, habit.LongestStreak)
}

func TestCheckInForeignOrMissingHabit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := primitive.NewObjectID().Hex()

	_, foreignErr := f.svc.CheckIn(ctx, stranger, f.habit.ID.Hex())
	assert.ErrorIs(t, foreignErr, errs.ErrNotFound)

	_, missingErr := f.svc.CheckIn(ctx, f.ownerID.Hex(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, missingErr, errs.ErrNotFound)

	// Ownership failure must not leak through a distinct message.
	assert.Equal(t, missingErr.Error(), foreignErr.Error())
}

func TestCheckInValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, f.ownerID.Hex(), "")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.CheckIn(ctx, f.ownerID.Hex(), "not-a-hex-id")
	assert.ErrorIs(t, err, errs.ErrValidation)

	// Nothing was written.
	count, err := f.store.LogCount(ctx, bson.M{"habit_id": f.habit.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

// duplicateOnUpsert simulates losing the race against a concurrent check-in:
// the pre-check sees nothing, but the upsert trips the uniqueness constraint.
type duplicateOnUpsert struct {
	storage.StorageInterface
}

func (d *duplicateOnUpsert) UpsertLog(ctx context.Context, habitID, userID primitive.ObjectID, day time.Time) (*models.HabitLog, error) {
	return nil, storage.ErrDuplicate
}

func TestCheckInConcurrentDuplicateIsAlreadyCheckedIn(t *testing.T) {
	f := newFixture(t)
	racy := NewServiceAt(&duplicateOnUpsert{StorageInterface: f.store}, nil, func() time.Time { return f.now })

	_, err := racy.CheckIn(context.Background(), f.ownerID.Hex(), f.habit.ID.Hex())
	assert.ErrorIs(t, err, errs.ErrAlreadyCheckedIn)
}

func TestLogsListsHabitHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for day := 0; day < 2; day++ {
		_, err := f.svc.CheckIn(ctx, f.ownerID.Hex(), f.habit.ID.Hex())
		require.NoError(t, err)
		f.now = f.now.AddDate(0, 0, 1)
	}

	logs, err := f.svc.Logs(ctx, f.ownerID.Hex(), f.habit.ID.Hex())
	require.NoError(t, err)
	require.Len(t, logs, 2)
	// Most recent first.
	assert.True(t, logs[0].Date.After(logs[1].Date))

	_, err = f.svc.Logs(ctx, primitive.NewObjectID().Hex(), f.habit.ID.Hex())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
