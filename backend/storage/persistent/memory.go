package storage

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/habitloop/habitloop/backend/models"
)

// MemoryStorage is an in-memory implementation of StorageInterface with the
// same semantics as the MongoDB backend, including the uniqueness constraints
// and the ErrNotFound/ErrDuplicate sentinels. It backs the service tests and
// credential-less local runs; it keeps no state across restarts.
type MemoryStorage struct {
	mu         sync.Mutex
	users      []models.User
	habits     []models.Habit
	logs       []models.HabitLog
	challenges []models.Challenge
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Disconnect is a no-op for the in-memory backend.
func (m *MemoryStorage) Disconnect() error {
	return nil
}

// matchValue compares a document field against a filter condition. Conditions
// are either literal values or bson.M operator documents ($gte/$lt over dates),
// mirroring the subset of query syntax the services actually use.
func matchValue(field interface{}, cond interface{}) bool {
	if ops, ok := cond.(bson.M); ok {
		t, ok := field.(time.Time)
		if !ok {
			return false
		}
		for op, bound := range ops {
			boundT, ok := bound.(time.Time)
			if !ok {
				return false
			}
			switch op {
			case "$gte":
				if t.Before(boundT) {
					return false
				}
			case "$lt":
				if !t.Before(boundT) {
					return false
				}
			default:
				return false
			}
		}
		return true
	}
	return field == cond
}

func matchFields(fields map[string]interface{}, filter interface{}) bool {
	if filter == nil {
		return true
	}
	filterMap, ok := filter.(bson.M)
	if !ok {
		return false
	}
	for key, cond := range filterMap {
		field, ok := fields[key]
		if !ok {
			return false
		}
		if !matchValue(field, cond) {
			return false
		}
	}
	return true
}

func userFields(u *models.User) map[string]interface{} {
	return map[string]interface{}{
		"_id":      u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
	}
}

func habitFields(h *models.Habit) map[string]interface{} {
	return map[string]interface{}{
		"_id":       h.ID,
		"user_id":   h.UserID,
		"title":     h.Title,
		"category":  h.Category,
		"frequency": h.Frequency,
		"priority":  h.Priority,
	}
}

func logFields(l *models.HabitLog) map[string]interface{} {
	return map[string]interface{}{
		"_id":       l.ID,
		"habit_id":  l.HabitID,
		"user_id":   l.UserID,
		"date":      l.Date,
		"completed": l.Completed,
	}
}

func challengeFields(c *models.Challenge) map[string]interface{} {
	return map[string]interface{}{
		"_id":        c.ID,
		"name":       c.Name,
		"creator_id": c.CreatorID,
	}
}

func (m *MemoryStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.users {
		if m.users[i].Email == user.Email || m.users[i].Username == user.Username {
			return nil, ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	m.users = append(m.users, *user)
	return user, nil
}

func (m *MemoryStorage) FindUser(ctx context.Context, filter interface{}) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.users {
		if matchFields(userFields(&m.users[i]), filter) {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, filter interface{}, update interface{}) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, _ := update.(bson.M)["$set"].(bson.M)
	for i := range m.users {
		if !matchFields(userFields(&m.users[i]), filter) {
			continue
		}
		if username, ok := set["username"].(string); ok {
			m.users[i].Username = username
		}
		if email, ok := set["email"].(string); ok {
			m.users[i].Email = email
		}
		if hash, ok := set["password_hash"].(string); ok {
			m.users[i].PasswordHash = hash
		}
		if role, ok := set["role"].(string); ok {
			m.users[i].Role = role
		}
		u := m.users[i]
		return &u, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) UserCount(ctx context.Context, filter interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for i := range m.users {
		if matchFields(userFields(&m.users[i]), filter) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if habit.ID.IsZero() {
		habit.ID = primitive.NewObjectID()
	}
	m.habits = append(m.habits, *habit)
	return habit, nil
}

func (m *MemoryStorage) FindHabit(ctx context.Context, filter interface{}) (*models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.habits {
		if matchFields(habitFields(&m.habits[i]), filter) {
			h := m.habits[i]
			return &h, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) FindHabitsByParameter(ctx context.Context, filter interface{}) ([]models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var habits []models.Habit
	for i := range m.habits {
		if matchFields(habitFields(&m.habits[i]), filter) {
			habits = append(habits, m.habits[i])
		}
	}
	return habits, nil
}

func (m *MemoryStorage) UpdateHabit(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, _ := update.(bson.M)["$set"].(bson.M)
	for i := range m.habits {
		if !matchFields(habitFields(&m.habits[i]), filter) {
			continue
		}
		if title, ok := set["title"].(string); ok {
			m.habits[i].Title = title
		}
		if category, ok := set["category"].(string); ok {
			m.habits[i].Category = category
		}
		if frequency, ok := set["frequency"].(string); ok {
			m.habits[i].Frequency = frequency
		}
		if priority, ok := set["priority"].(string); ok {
			m.habits[i].Priority = priority
		}
		if s, ok := set["streak"].(int); ok {
			m.habits[i].Streak = s
		}
		if ls, ok := set["longest_streak"].(int); ok {
			m.habits[i].LongestStreak = ls
		}
		return &UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) DeleteHabits(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []models.Habit
	var deleted int64
	for i := range m.habits {
		if matchFields(habitFields(&m.habits[i]), filter) {
			deleted++
			continue
		}
		kept = append(kept, m.habits[i])
	}
	m.habits = kept
	return &DeleteResult{DeletedCount: deleted}, nil
}

func (m *MemoryStorage) FindLog(ctx context.Context, filter interface{}) (*models.HabitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.logs {
		if matchFields(logFields(&m.logs[i]), filter) {
			l := m.logs[i]
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) FindLogsByParameter(ctx context.Context, filter interface{}) ([]models.HabitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var logs []models.HabitLog
	for i := range m.logs {
		if matchFields(logFields(&m.logs[i]), filter) {
			logs = append(logs, m.logs[i])
		}
	}
	// Most recent date first, matching the MongoDB backend's sort.
	for i := 0; i < len(logs); i++ {
		for j := i + 1; j < len(logs); j++ {
			if logs[j].Date.After(logs[i].Date) {
				logs[i], logs[j] = logs[j], logs[i]
			}
		}
	}
	return logs, nil
}

func (m *MemoryStorage) UpsertLog(ctx context.Context, habitID, userID primitive.ObjectID, day time.Time) (*models.HabitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nextDay := day.AddDate(0, 0, 1)
	for i := range m.logs {
		l := &m.logs[i]
		if l.HabitID == habitID && !l.Date.Before(day) && l.Date.Before(nextDay) {
			l.Completed = true
			l.Date = day
			out := *l
			return &out, nil
		}
	}
	log := models.HabitLog{
		ID:        primitive.NewObjectID(),
		HabitID:   habitID,
		UserID:    userID,
		Date:      day,
		Completed: true,
	}
	m.logs = append(m.logs, log)
	return &log, nil
}

func (m *MemoryStorage) DeleteLogs(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []models.HabitLog
	var deleted int64
	for i := range m.logs {
		if matchFields(logFields(&m.logs[i]), filter) {
			deleted++
			continue
		}
		kept = append(kept, m.logs[i])
	}
	m.logs = kept
	return &DeleteResult{DeletedCount: deleted}, nil
}

func (m *MemoryStorage) LogCount(ctx context.Context, filter interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for i := range m.logs {
		if matchFields(logFields(&m.logs[i]), filter) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStorage) AddChallenge(ctx context.Context, challenge *models.Challenge) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if challenge.ID.IsZero() {
		challenge.ID = primitive.NewObjectID()
	}
	m.challenges = append(m.challenges, *challenge)
	return challenge, nil
}

func (m *MemoryStorage) FindChallenge(ctx context.Context, filter interface{}) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.challenges {
		if matchFields(challengeFields(&m.challenges[i]), filter) {
			c := m.challenges[i]
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) FindChallengesByParameter(ctx context.Context, filter interface{}) ([]models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var challenges []models.Challenge
	for i := range m.challenges {
		if matchFields(challengeFields(&m.challenges[i]), filter) {
			challenges = append(challenges, m.challenges[i])
		}
	}
	return challenges, nil
}

func (m *MemoryStorage) AddParticipant(ctx context.Context, challengeID, userID primitive.ObjectID) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.challenges {
		if m.challenges[i].ID != challengeID {
			continue
		}
		present := false
		for _, p := range m.challenges[i].Participants {
			if p == userID {
				present = true
				break
			}
		}
		if !present {
			m.challenges[i].Participants = append(m.challenges[i].Participants, userID)
		}
		c := m.challenges[i]
		return &c, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) DeleteChallenges(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []models.Challenge
	var deleted int64
	for i := range m.challenges {
		if matchFields(challengeFields(&m.challenges[i]), filter) {
			deleted++
			continue
		}
		kept = append(kept, m.challenges[i])
	}
	m.challenges = kept
	return &DeleteResult{DeletedCount: deleted}, nil
}
