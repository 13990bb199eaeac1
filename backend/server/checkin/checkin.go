// Package checkin implements the daily check-in protocol: validate ownership,
// reject a duplicate same-day check-in, upsert today's log, recompute the
// streak and persist it onto the habit.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/habitloop/habitloop/backend/errs"
	"github.com/habitloop/habitloop/backend/models"
	"github.com/habitloop/habitloop/backend/server/analytics"
	"github.com/habitloop/habitloop/backend/storage/cache"
	storage "github.com/habitloop/habitloop/backend/storage/persistent"
	"github.com/habitloop/habitloop/backend/streak"
)

// Service performs check-ins. now is injectable so tests can pin the calendar
// day; it defaults to time.Now.
type Service struct {
	store storage.StorageInterface
	cache cache.CacheInterface
	now   func() time.Time
}

// NewService creates a check-in service bound to the given storage backend.
func NewService(store storage.StorageInterface, c cache.CacheInterface) *Service {
	return &Service{store: store, cache: c, now: time.Now}
}

// NewServiceAt creates a check-in service with a custom clock.
func NewServiceAt(store storage.StorageInterface, c cache.CacheInterface, now func() time.Time) *Service {
	return &Service{store: store, cache: c, now: now}
}

// Result is the outcome of a successful check-in.
type Result struct {
	Log           *models.HabitLog `json:"log"`
	Streak        int              `json:"streak"`
	LongestStreak int              `json:"longestStreak"`
}

// CheckIn records the completion of a habit for today.
//
// The habit must exist and be owned by the caller; a foreign or missing habit
// is one and the same Not-Found error. A second check-in on the same calendar
// day fails with ErrAlreadyCheckedIn and changes nothing; the (habit, day)
// uniqueness constraint in the store backstops the concurrent case.
func (s *Service) CheckIn(ctx context.Context, userID, habitID string) (*Result, error) {
	ownerID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.Validation("invalid user id")
	}
	if habitID == "" {
		return nil, errs.Validation("habit id is required")
	}
	id, err := primitive.ObjectIDFromHex(habitID)
	if err != nil {
		return nil, errs.Validation("invalid habit id %q", habitID)
	}

	habit, err := s.store.FindHabit(ctx, bson.M{"_id": id, "user_id": ownerID})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: habit", errs.ErrNotFound)
		}
		return nil, err
	}

	today := streak.DayStart(s.now())

	// Completed log already inside [today, tomorrow) means the day is done.
	_, err = s.store.FindLog(ctx, bson.M{
		"habit_id":  habit.ID,
		"user_id":   ownerID,
		"completed": true,
		"date": bson.M{
			"$gte": today,
			"$lt":  streak.NextDay(today),
		},
	})
	if err == nil {
		return nil, errs.ErrAlreadyCheckedIn
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	log, err := s.store.UpsertLog(ctx, habit.ID, ownerID, today)
	if err != nil {
		// A concurrent check-in that won the race trips the uniqueness
		// constraint; that is the same outcome as the pre-check above.
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, errs.ErrAlreadyCheckedIn
		}
		return nil, err
	}

	history, err := s.store.FindLogsByParameter(ctx, bson.M{
		"habit_id":  habit.ID,
		"completed": true,
	})
	if err != nil {
		return nil, err
	}

	current := streak.Current(history, today)
	longest := habit.LongestStreak
	if current > longest {
		longest = current
	}

	_, err = s.store.UpdateHabit(ctx, bson.M{"_id": habit.ID}, bson.M{
		"$set": bson.M{
			"streak":         current,
			"longest_streak": longest,
		},
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, analytics.StatsCacheKey(userID))
	}

	return &Result{Log: log, Streak: current, LongestStreak: longest}, nil
}

// Logs lists all check-in logs of a habit owned by the caller, most recent first.
func (s *Service) Logs(ctx context.Context, userID, habitID string) ([]models.HabitLog, error) {
	ownerID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.Validation("invalid user id")
	}
	id, err := primitive.ObjectIDFromHex(habitID)
	if err != nil {
		return nil, errs.Validation("invalid habit id %q", habitID)
	}

	if _, err := s.store.FindHabit(ctx, bson.M{"_id": id, "user_id": ownerID}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: habit", errs.ErrNotFound)
		}
		return nil, err
	}

	return s.store.FindLogsByParameter(ctx, bson.M{"habit_id": id})
}
