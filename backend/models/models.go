package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Habit frequency values accepted by the API.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Habit priority values accepted by the API. PriorityMedium is the default.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// User roles. RoleUser is the default assigned at registration.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

type Habit struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title         string             `bson:"title" json:"title"`
	Category      string             `bson:"category" json:"category"`
	Frequency     string             `bson:"frequency" json:"frequency"`
	Priority      string             `bson:"priority" json:"priority"`
	Streak        int                `bson:"streak" json:"streak"`
	LongestStreak int                `bson:"longest_streak" json:"longest_streak"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// HabitLog records the completion of a habit on one calendar day.
// Date is always normalized to midnight UTC; the store enforces at most
// one log per (habit_id, date) pair.
type HabitLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	HabitID   primitive.ObjectID `bson:"habit_id" json:"habit_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Date      time.Time          `bson:"date" json:"date"`
	Completed bool               `bson:"completed" json:"completed"`
}

type LeaderboardEntry struct {
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	Score  int                `bson:"score" json:"score"`
}

type Challenge struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Description  string               `bson:"description,omitempty" json:"description,omitempty"`
	CreatorID    primitive.ObjectID   `bson:"creator_id" json:"creator_id"`
	Participants []primitive.ObjectID `bson:"participants" json:"participants"`
	HabitIDs     []primitive.ObjectID `bson:"habit_ids" json:"habit_ids"`
	StartDate    *time.Time           `bson:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate      *time.Time           `bson:"end_date,omitempty" json:"end_date,omitempty"`
	Leaderboard  []LeaderboardEntry   `bson:"leaderboard" json:"leaderboard"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
}
