package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/habitloop/habitloop/backend/models"
)

// Sentinel errors shared by every storage backend. Callers match them with
// errors.Is instead of inspecting driver-specific error types.
var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint,
	// e.g. a second log for the same (habit, day) or a taken email.
	ErrDuplicate = errors.New("duplicate document")
)

// DeleteResult represents the result of a deletion operation,
// specifically the count of documents deleted.
type DeleteResult struct {
	DeletedCount int64
}

// UpdateResult represents the result of an update operation,
// specifically the count of documents matched and modified.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement. Filters are bson.M documents over the tagged
// fields of the models package.
type StorageInterface interface {
	// Disconnect releases the connection to the storage backend.
	Disconnect() error

	// AddUser adds a new user. Returns ErrDuplicate if the email or username is taken.
	AddUser(ctx context.Context, user *models.User) (*models.User, error)
	// FindUser finds a single user matching the filter.
	FindUser(ctx context.Context, filter interface{}) (*models.User, error)
	// UpdateUser updates a user matching the filter and returns the updated document.
	UpdateUser(ctx context.Context, filter interface{}, update interface{}) (*models.User, error)
	// UserCount returns the count of users matching the filter.
	UserCount(ctx context.Context, filter interface{}) (int64, error)

	// AddHabit adds a new habit.
	AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error)
	// FindHabit finds a single habit matching the filter.
	FindHabit(ctx context.Context, filter interface{}) (*models.Habit, error)
	// FindHabitsByParameter finds all habits matching the filter.
	FindHabitsByParameter(ctx context.Context, filter interface{}) ([]models.Habit, error)
	// UpdateHabit updates habits matching the filter.
	UpdateHabit(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error)
	// DeleteHabits deletes all habits matching the filter.
	DeleteHabits(ctx context.Context, filter interface{}) (*DeleteResult, error)

	// FindLog finds a single check-in log matching the filter.
	FindLog(ctx context.Context, filter interface{}) (*models.HabitLog, error)
	// FindLogsByParameter finds all logs matching the filter, most recent date first.
	FindLogsByParameter(ctx context.Context, filter interface{}) ([]models.HabitLog, error)
	// UpsertLog creates or updates the log for the given habit and calendar day,
	// marking it completed. day must be normalized to midnight UTC. The
	// (habit, day) uniqueness constraint is the backstop for concurrent upserts;
	// a constraint violation surfaces as ErrDuplicate.
	UpsertLog(ctx context.Context, habitID, userID primitive.ObjectID, day time.Time) (*models.HabitLog, error)
	// DeleteLogs deletes all logs matching the filter.
	DeleteLogs(ctx context.Context, filter interface{}) (*DeleteResult, error)
	// LogCount returns the count of logs matching the filter.
	LogCount(ctx context.Context, filter interface{}) (int64, error)

	// AddChallenge adds a new challenge.
	AddChallenge(ctx context.Context, challenge *models.Challenge) (*models.Challenge, error)
	// FindChallenge finds a single challenge matching the filter.
	FindChallenge(ctx context.Context, filter interface{}) (*models.Challenge, error)
	// FindChallengesByParameter finds all challenges matching the filter.
	FindChallengesByParameter(ctx context.Context, filter interface{}) ([]models.Challenge, error)
	// AddParticipant adds a user to a challenge's participant set. Adding a
	// participant who is already present is a no-op; the updated challenge is
	// returned either way.
	AddParticipant(ctx context.Context, challengeID, userID primitive.ObjectID) (*models.Challenge, error)
	// DeleteChallenges deletes all challenges matching the filter.
	DeleteChallenges(ctx context.Context, filter interface{}) (*DeleteResult, error)
}

// NewStorage creates a new StorageInterface with a MongoDB backend,
// using the provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	storage := NewMongoStorage()
	err := storage.Connect(dbName, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage, nil
}
