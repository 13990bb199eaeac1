// Package habits implements habit CRUD, scoped to the owning user. A habit of
// another user and a missing habit are indistinguishable to the caller.
package habits

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
)

// Service manages habit definitions. The cache is optional and only used to
// invalidate stale analytics snapshots.
type Service struct {
	store storage.StorageInterface
	cache cache.CacheInterface
}

// NewService creates a habit service bound to the given storage backend.
func NewService(store storage.StorageInterface, c cache.CacheInterface) *Service {
	return &Service{store: store, cache: c}
}

// CreateInput carries the user-supplied fields of a new habit.
type CreateInput struct {
	Title     string `json:"title"`
	Category  string `json:"category"`
	Frequency string `json:"frequency"`
	Priority  string `json:"priority"`
}

// UpdateInput carries a partial habit update; nil fields are left unchanged.
type UpdateInput struct {
	Title     *string `json:"title"`
	Category  *string `json:"category"`
	Frequency *string `json:"frequency"`
	Priority  *string `json:"priority"`
}

func validFrequency(f string) bool {
	return f == models.FrequencyDaily || f == models.FrequencyWeekly || f == models.FrequencyMonthly
}

func validPriority(p string) bool {
	return p == models.PriorityLow || p == models.PriorityMedium || p == models.PriorityHigh
}

func parseID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.Validation("invalid id %q", id)
	}
	return objectID, nil
}

// Create validates and stores a new habit owned by the calling user.
// Streak counters start at zero; priority defaults to medium.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Habit, error) {
	ownerID, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, errs.Validation("title is required")
	}
	if in.Category == "" {
		return nil, errs.Validation("category is required")
	}
	if !validFrequency(in.Frequency) {
		return nil, errs.Validation("frequency must be daily, weekly or monthly")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !validPriority(in.Priority) {
		return nil, errs.Validation("priority must be low, medium or high")
	}

	habit := &models.Habit{
		UserID:    ownerID,
		Title:     in.Title,
		Category:  in.Category,
		Frequency: in.Frequency,
		Priority:  in.Priority,
		CreatedAt: time.Now().UTC(),
	}

	habit, err = s.store.AddHabit(ctx, habit)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, userID)
	return habit, nil
}

// List returns all habits owned by the calling user.
func (s *Service) List(ctx context.Context, userID string) ([]models.Habit, error) {
	ownerID, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	return s.store.FindHabitsByParameter(ctx, bson.M{"user_id": ownerID})
}

// Get returns a single habit owned by the calling user.
func (s *Service) Get(ctx context.Context, userID, habitID string) (*models.Habit, error) {
	ownerID, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	id, err := parseID(habitID)
	if err != nil {
		return nil, err
	}

	habit, err := s.store.FindHabit(ctx, bson.M{"_id": id, "user_id": ownerID})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: habit", errs.ErrNotFound)
		}
		return nil, err
	}
	return habit, nil
}

// Update applies a partial update to a habit owned by the calling user and
// returns the updated habit.
func (s *Service) Update(ctx context.Context, userID, habitID string, in UpdateInput) (*models.Habit, error) {
	habit, err := s.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if in.Title != nil {
		if *in.Title == "" {
			return nil, errs.Validation("title cannot be empty")
		}
		set["title"] = *in.Title
	}
	if in.Category != nil {
		if *in.Category == "" {
			return nil, errs.Validation("category cannot be empty")
		}
		set["category"] = *in.Category
	}
	if in.Frequency != nil {
		if !validFrequency(*in.Frequency) {
			return nil, errs.Validation("frequency must be daily, weekly or monthly")
		}
		set["frequency"] = *in.Frequency
	}
	if in.Priority != nil {
		if !validPriority(*in.Priority) {
			return nil, errs.Validation("priority must be low, medium or high")
		}
		set["priority"] = *in.Priority
	}
	if len(set) == 0 {
		return habit, nil
	}

	_, err = s.store.UpdateHabit(ctx, bson.M{"_id": habit.ID, "user_id": habit.UserID}, bson.M{"$set": set})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, habitID)
}

// Delete removes a habit owned by the calling user together with all of its
// check-in logs. The cascade is enforced here, not by the store.
func (s *Service) Delete(ctx context.Context, userID, habitID string) error {
	habit, err := s.Get(ctx, userID, habitID)
	if err != nil {
		return err
	}

	if _, err := s.store.DeleteHabits(ctx, bson.M{"_id": habit.ID}); err != nil {
		return err
	}
	if _, err := s.store.DeleteLogs(ctx, bson.M{"habit_id": habit.ID}); err != nil {
		return err
	}
	s.invalidateStats(ctx, userID)
	return nil
}

func (s *Service) invalidateStats(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	// A stale snapshot is a display artifact, not a correctness problem.
	_ = s.cache.Delete(ctx, analytics.StatsCacheKey(userID))
}
