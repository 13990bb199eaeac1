// Package challenges implements shared multi-user challenges: create, list,
// idempotent join, and admin-gated delete.
package challenges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/habitloop/habitloop/backend/errs"
	"github.com/habitloop/habitloop/backend/models"
	storage "github.com/habitloop/habitloop/backend/storage/persistent"
)

// Service manages challenges.
type Service struct {
	store storage.StorageInterface
}

// NewService creates a challenge service bound to the given storage backend.
func NewService(store storage.StorageInterface) *Service {
	return &Service{store: store}
}

// CreateInput carries the user-supplied fields of a new challenge.
type CreateInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	HabitIDs    []string   `json:"habit_ids"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// Create stores a new challenge. The caller becomes the creator and the sole
// initial participant.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Challenge, error) {
	creatorID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.Validation("invalid user id")
	}
	if in.Name == "" {
		return nil, errs.Validation("name is required")
	}

	habitIDs := make([]primitive.ObjectID, 0, len(in.HabitIDs))
	for _, raw := range in.HabitIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, errs.Validation("invalid habit id %q", raw)
		}
		habitIDs = append(habitIDs, id)
	}

	challenge := &models.Challenge{
		Name:         in.Name,
		Description:  in.Description,
		CreatorID:    creatorID,
		Participants: []primitive.ObjectID{creatorID},
		HabitIDs:     habitIDs,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Leaderboard:  []models.LeaderboardEntry{},
		CreatedAt:    time.Now().UTC(),
	}

	return s.store.AddChallenge(ctx, challenge)
}

// List returns every challenge. There is no ownership filter: any
// authenticated caller sees all challenges.
func (s *Service) List(ctx context.Context) ([]models.Challenge, error) {
	return s.store.FindChallengesByParameter(ctx, bson.M{})
}

// Join adds the caller to a challenge's participant set. Joining a challenge
// the caller already participates in is a no-op; the challenge is returned
// unchanged.
func (s *Service) Join(ctx context.Context, userID, challengeID string) (*models.Challenge, error) {
	participantID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.Validation("invalid user id")
	}
	id, err := primitive.ObjectIDFromHex(challengeID)
	if err != nil {
		return nil, errs.Validation("invalid challenge id %q", challengeID)
	}

	challenge, err := s.store.AddParticipant(ctx, id, participantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: challenge", errs.ErrNotFound)
		}
		return nil, err
	}
	return challenge, nil
}

// Delete removes a challenge. Role gating (admin only) happens at the route.
func (s *Service) Delete(ctx context.Context, challengeID string) error {
	id, err := primitive.ObjectIDFromHex(challengeID)
	if err != nil {
		return errs.Validation("invalid challenge id %q", challengeID)
	}

	result, err := s.store.DeleteChallenges(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: challenge", errs.ErrNotFound)
	}
	return nil
}
