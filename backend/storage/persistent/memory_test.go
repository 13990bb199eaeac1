package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/habitloop/habitloop/backend/models"
)

func TestAddUserEnforcesUniqueness(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	_, err := store.AddUser(ctx, &models.User{Username: "casey", Email: "casey@example.com"})
	require.NoError(t, err)

	_, err = store.AddUser(ctx, &models.User{Username: "other", Email: "casey@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.AddUser(ctx, &models.User{Username: "casey", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestFindUserNotFound(t *testing.T) {
	store := NewMemoryStorage()

	_, err := store.FindUser(context.Background(), bson.M{"email": "nobody@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertLogSameDayReturnsExisting(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	habitID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	day := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)

	first, err := store.UpsertLog(ctx, habitID, userID, day)
	require.NoError(t, err)
	require.True(t, first.Completed)

	second, err := store.UpsertLog(ctx, habitID, userID, day)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := store.LogCount(ctx, bson.M{"habit_id": habitID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestFindLogsByParameterOrdersByDateDescending(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	habitID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	for _, offset := range []int{2, 0, 4, 1, 3} {
		_, err := store.UpsertLog(ctx, habitID, userID, base.AddDate(0, 0, offset))
		require.NoError(t, err)
	}

	logs, err := store.FindLogsByParameter(ctx, bson.M{"habit_id": habitID})
	require.NoError(t, err)
	require.Len(t, logs, 5)
	for i := 1; i < len(logs); i++ {
		assert.True(t, logs[i].Date.Before(logs[i-1].Date))
	}
}

func TestDateRangeFilter(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	habitID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	day := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)

	_, err := store.UpsertLog(ctx, habitID, userID, day)
	require.NoError(t, err)

	log, err := store.FindLog(ctx, bson.M{
		"habit_id": habitID,
		"date":     bson.M{"$gte": day, "$lt": day.AddDate(0, 0, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, habitID, log.HabitID)

	_, err = store.FindLog(ctx, bson.M{
		"habit_id": habitID,
		"date":     bson.M{"$gte": day.AddDate(0, 0, 1), "$lt": day.AddDate(0, 0, 2)},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteHabitsReportsCount(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	ownerID := primitive.NewObjectID()

	for i := 0; i < 3; i++ {
		_, err := store.AddHabit(ctx, &models.Habit{UserID: ownerID, Title: "h"})
		require.NoError(t, err)
	}

	result, err := store.DeleteHabits(ctx, bson.M{"user_id": ownerID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.DeletedCount)

	result, err = store.DeleteHabits(ctx, bson.M{"user_id": ownerID})
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.DeletedCount)
}

func TestAddParticipantMissingChallenge(t *testing.T) {
	store := NewMemoryStorage()

	_, err := store.AddParticipant(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}
