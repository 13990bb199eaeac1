// Package analytics aggregates per-user habit statistics: counts, streak
// snapshots and a coarse completion-rate heuristic.
package analytics

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/habitloop/habitloop/backend/errs"
	"github.com/habitloop/habitloop/backend/storage/cache"
	storage "github.com/habitloop/habitloop/backend/storage/persistent"
)

// snapshotTTL bounds how stale a cached stats snapshot may get; writes that
// change the numbers also invalidate the key eagerly.
const snapshotTTL = 5 * time.Minute

// StatsCacheKey returns the cache key under which a user's stats snapshot is stored.
func StatsCacheKey(userID string) string {
	return "stats:" + userID
}

// HabitStreak is the per-habit slice of a stats snapshot.
type HabitStreak struct {
	Title  string `json:"title"`
	Streak int    `json:"streak"`
}

// Stats is the aggregate snapshot returned to the caller.
//
// CompletionRate is round(totalLogs / totalHabits / 7 * 100) when the user has
// habits, else 0. It conflates lifetime logs with a fixed weekly window and can
// exceed 100; it is kept as-is because the product defines it this way, and
// callers must not treat it as a statistically rigorous rate.
type Stats struct {
	TotalHabits    int           `json:"totalHabits"`
	TotalLogs      int           `json:"totalLogs"`
	Streaks        []HabitStreak `json:"streaks"`
	CompletionRate int           `json:"completionRate"`
}

// Service computes stats snapshots. The cache is optional; when present,
// snapshots are served from it within snapshotTTL.
type Service struct {
	store storage.StorageInterface
	cache cache.CacheInterface
}

// NewService creates an analytics service bound to the given storage backend.
func NewService(store storage.StorageInterface, c cache.CacheInterface) *Service {
	return &Service{store: store, cache: c}
}

// Stats returns the aggregate snapshot for the calling user.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	ownerID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.Validation("invalid user id")
	}

	if s.cache != nil {
		cached := &Stats{}
		if err := s.cache.Get(ctx, StatsCacheKey(userID), cached); err == nil {
			return cached, nil
		}
	}

	habits, err := s.store.FindHabitsByParameter(ctx, bson.M{"user_id": ownerID})
	if err != nil {
		return nil, err
	}
	logCount, err := s.store.LogCount(ctx, bson.M{"user_id": ownerID})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalHabits: len(habits),
		TotalLogs:   int(logCount),
		Streaks:     make([]HabitStreak, 0, len(habits)),
	}
	for _, habit := range habits {
		stats.Streaks = append(stats.Streaks, HabitStreak{Title: habit.Title, Streak: habit.Streak})
	}
	if stats.TotalHabits > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.TotalLogs) / float64(stats.TotalHabits) / 7 * 100))
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, StatsCacheKey(userID), stats, snapshotTTL)
	}
	return stats, nil
}
