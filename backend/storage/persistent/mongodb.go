package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/habitloop/habitloop/backend/models"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on the users, habits,
// habit_logs and challenges collections.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoStorage instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// Connect establishes a connection to the MongoDB server at the given URI and database name.
// Sets up indexes and unique constraints as necessary.
// Returns an error if any issues are encountered.
func (m *MongoStorage) Connect(dbName, uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	usersCollection := m.collection("users")

	// Every user has a unique email; the index also speeds up login lookups.
	emailIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"email": 1, // 1 for ascending order
		},
		Options: options.Index().SetUnique(true),
	}
	_, err = usersCollection.Indexes().CreateOne(ctx, emailIndexModel)
	if err != nil {
		return fmt.Errorf("error creating email index: %v", err)
	}

	usernameIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"username": 1,
		},
		Options: options.Index().SetUnique(true),
	}
	_, err = usersCollection.Indexes().CreateOne(ctx, usernameIndexModel)
	if err != nil {
		return fmt.Errorf("error creating username index: %v", err)
	}

	habitsCollection := m.collection("habits")

	// Habit listings are always scoped to the owning user.
	userIdIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"user_id": 1,
		},
		Options: options.Index(),
	}
	_, err = habitsCollection.Indexes().CreateOne(ctx, userIdIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id index on habits: %v", err)
	}

	logsCollection := m.collection("habit_logs")

	// At most one log per (habit, calendar day). This constraint is the
	// backstop against concurrent double check-ins.
	habitDateIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "habit_id", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	_, err = logsCollection.Indexes().CreateOne(ctx, habitDateIndexModel)
	if err != nil {
		return fmt.Errorf("error creating habit_id and date index on habit_logs: %v", err)
	}

	// Analytics counts logs across a user's habits directly.
	_, err = logsCollection.Indexes().CreateOne(ctx, userIdIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id index on habit_logs: %v", err)
	}

	challengesCollection := m.collection("challenges")

	creatorIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"creator_id": 1,
		},
		Options: options.Index(),
	}
	_, err = challengesCollection.Indexes().CreateOne(ctx, creatorIndexModel)
	if err != nil {
		return fmt.Errorf("error creating creator_id index on challenges: %v", err)
	}

	return nil
}

func (m *MongoStorage) collection(name string) *mongo.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

// mapError converts driver errors into the storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// Disconnect closes the connection to the MongoDB server.
// It should be called when the MongoStorage instance is no longer needed.
// Returns an error if the disconnection process fails.
func (m *MongoStorage) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}

	return nil
}

// AddUser adds a new user document to the 'users' collection.
// Returns ErrDuplicate if the email or username is already taken.
func (m *MongoStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	result, err := m.collection("users").InsertOne(ctx, user)
	if err != nil {
		return nil, mapError(err)
	}

	user.ID = result.InsertedID.(primitive.ObjectID)
	return user, nil
}

// FindUser finds a user document in the 'users' collection that matches the given filter.
func (m *MongoStorage) FindUser(ctx context.Context, filter interface{}) (*models.User, error) {
	result := m.collection("users").FindOne(ctx, filter)
	user := &models.User{}
	if err := result.Decode(user); err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// UpdateUser updates a user document in the 'users' collection that matches the given
// filter with the provided update, and returns the updated user.
func (m *MongoStorage) UpdateUser(ctx context.Context, filter interface{}, update interface{}) (*models.User, error) {
	result, err := m.collection("users").UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, mapError(err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return m.FindUser(ctx, filter)
}

// UserCount returns the number of documents in the 'users' collection that match the given filter.
func (m *MongoStorage) UserCount(ctx context.Context, filter interface{}) (int64, error) {
	count, err := m.collection("users").CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AddHabit adds a new habit document to the 'habits' collection.
func (m *MongoStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	result, err := m.collection("habits").InsertOne(ctx, habit)
	if err != nil {
		return nil, mapError(err)
	}
	habit.ID = result.InsertedID.(primitive.ObjectID)
	return habit, nil
}

// FindHabit finds a single habit document in the 'habits' collection that matches the given filter.
func (m *MongoStorage) FindHabit(ctx context.Context, filter interface{}) (*models.Habit, error) {
	result := m.collection("habits").FindOne(ctx, filter)
	habit := &models.Habit{}
	if err := result.Decode(habit); err != nil {
		return nil, mapError(err)
	}
	return habit, nil
}

// FindHabitsByParameter finds habit documents in the 'habits' collection that match the given filter.
func (m *MongoStorage) FindHabitsByParameter(ctx context.Context, filter interface{}) ([]models.Habit, error) {
	cursor, err := m.collection("habits").Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var habits []models.Habit
	for cursor.Next(ctx) {
		var habit models.Habit
		if err := cursor.Decode(&habit); err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}
	return habits, cursor.Err()
}

// UpdateHabit updates habit documents in the 'habits' collection that match the given filter.
func (m *MongoStorage) UpdateHabit(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error) {
	result, err := m.collection("habits").UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, mapError(err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return &UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// DeleteHabits deletes habit documents from the 'habits' collection that match the given filter.
func (m *MongoStorage) DeleteHabits(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	result, err := m.collection("habits").DeleteMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// FindLog finds a single log document in the 'habit_logs' collection that matches the given filter.
func (m *MongoStorage) FindLog(ctx context.Context, filter interface{}) (*models.HabitLog, error) {
	result := m.collection("habit_logs").FindOne(ctx, filter)
	log := &models.HabitLog{}
	if err := result.Decode(log); err != nil {
		return nil, mapError(err)
	}
	return log, nil
}

// FindLogsByParameter finds log documents in the 'habit_logs' collection that match
// the given filter, sorted most recent date first.
func (m *MongoStorage) FindLogsByParameter(ctx context.Context, filter interface{}) ([]models.HabitLog, error) {
	opts := options.Find().SetSort(bson.M{"date": -1})
	cursor, err := m.collection("habit_logs").Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []models.HabitLog
	for cursor.Next(ctx) {
		var log models.HabitLog
		if err := cursor.Decode(&log); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, cursor.Err()
}

// UpsertLog creates or updates the log for the given habit within the calendar day
// starting at day (midnight UTC), marking it completed. A concurrent upsert that
// trips the (habit_id, date) unique index surfaces as ErrDuplicate.
func (m *MongoStorage) UpsertLog(ctx context.Context, habitID, userID primitive.ObjectID, day time.Time) (*models.HabitLog, error) {
	filter := bson.M{
		"habit_id": habitID,
		"user_id":  userID,
		"date": bson.M{
			"$gte": day,
			"$lt":  day.AddDate(0, 0, 1),
		},
	}
	update := bson.M{
		"$set": bson.M{
			"completed": true,
			"date":      day,
		},
		"$setOnInsert": bson.M{
			"habit_id": habitID,
			"user_id":  userID,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	log := &models.HabitLog{}
	err := m.collection("habit_logs").FindOneAndUpdate(ctx, filter, update, opts).Decode(log)
	if err != nil {
		return nil, mapError(err)
	}
	return log, nil
}

// DeleteLogs deletes log documents from the 'habit_logs' collection that match the given filter.
func (m *MongoStorage) DeleteLogs(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	result, err := m.collection("habit_logs").DeleteMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// LogCount returns the number of documents in the 'habit_logs' collection that match the given filter.
func (m *MongoStorage) LogCount(ctx context.Context, filter interface{}) (int64, error) {
	count, err := m.collection("habit_logs").CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AddChallenge adds a new challenge document to the 'challenges' collection.
func (m *MongoStorage) AddChallenge(ctx context.Context, challenge *models.Challenge) (*models.Challenge, error) {
	result, err := m.collection("challenges").InsertOne(ctx, challenge)
	if err != nil {
		return nil, mapError(err)
	}
	challenge.ID = result.InsertedID.(primitive.ObjectID)
	return challenge, nil
}

// FindChallenge finds a single challenge document in the 'challenges' collection that
// matches the given filter.
func (m *MongoStorage) FindChallenge(ctx context.Context, filter interface{}) (*models.Challenge, error) {
	result := m.collection("challenges").FindOne(ctx, filter)
	challenge := &models.Challenge{}
	if err := result.Decode(challenge); err != nil {
		return nil, mapError(err)
	}
	return challenge, nil
}

// FindChallengesByParameter finds challenge documents in the 'challenges' collection
// that match the given filter.
func (m *MongoStorage) FindChallengesByParameter(ctx context.Context, filter interface{}) ([]models.Challenge, error) {
	cursor, err := m.collection("challenges").Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var challenges []models.Challenge
	for cursor.Next(ctx) {
		var challenge models.Challenge
		if err := cursor.Decode(&challenge); err != nil {
			return nil, err
		}
		challenges = append(challenges, challenge)
	}
	return challenges, cursor.Err()
}

// AddParticipant adds a user to a challenge's participant set. $addToSet keeps the
// operation idempotent at the store level: joining twice leaves the set unchanged.
func (m *MongoStorage) AddParticipant(ctx context.Context, challengeID, userID primitive.ObjectID) (*models.Challenge, error) {
	filter := bson.M{"_id": challengeID}
	update := bson.M{
		"$addToSet": bson.M{
			"participants": userID,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	challenge := &models.Challenge{}
	err := m.collection("challenges").FindOneAndUpdate(ctx, filter, update, opts).Decode(challenge)
	if err != nil {
		return nil, mapError(err)
	}
	return challenge, nil
}

// DeleteChallenges deletes challenge documents from the 'challenges' collection that
// match the given filter.
func (m *MongoStorage) DeleteChallenges(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	result, err := m.collection("challenges").DeleteMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}
