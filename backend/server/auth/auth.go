// Package auth implements registration, login and bearer-token identity
// resolution. Passwords are stored as bcrypt hashes; tokens are HS256 JWTs
// carrying the user's id and role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/habitloop/habitloop/backend/errs"
	"github.com/habitloop/habitloop/backend/models"
	"github.com/habitloop/habitloop/backend/queue"
	storage "github.com/habitloop/habitloop/backend/storage/persistent"
	"github.com/habitloop/habitloop/lib/utils"
)

// tokenLifetime is how long an issued auth token stays valid.
const tokenLifetime = 7 * 24 * time.Hour

// Service authenticates users against the storage backend and issues tokens.
// The welcome queue is optional; a nil queue disables welcome emails.
type Service struct {
	store      storage.StorageInterface
	welcome    *queue.Queue
	signingKey string
}

// NewService creates an auth service bound to the given storage backend and
// JWT signing key.
func NewService(store storage.StorageInterface, signingKey string, welcome *queue.Queue) *Service {
	return &Service{store: store, welcome: welcome, signingKey: signingKey}
}

// Register creates a new user account and returns a signed auth token together
// with the stored user. The email and username must be unused; the password
// must be at least 8 characters with both letters and numbers.
func (s *Service) Register(ctx context.Context, username, email, password string) (string, *models.User, error) {
	if len(username) < 2 {
		return "", nil, errs.Validation("invalid username")
	}
	if !utils.ValidateEmail(email) {
		return "", nil, errs.Validation("invalid email format")
	}
	if !utils.ValidatePassword(password) {
		return "", nil, errs.Validation("password must be at least 8 characters and contain both letters and numbers")
	}

	if _, err := s.store.FindUser(ctx, bson.M{"email": email}); err == nil {
		return "", nil, errs.Validation("an account with this email already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", nil, err
	}

	if _, err := s.store.FindUser(ctx, bson.M{"username": username}); err == nil {
		return "", nil, errs.Validation("username is taken")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}

	user, err = s.store.AddUser(ctx, user)
	if err != nil {
		// The unique indexes are the backstop against a concurrent signup
		// with the same email or username.
		if errors.Is(err, storage.ErrDuplicate) {
			return "", nil, errs.Validation("an account with this email or username already exists")
		}
		return "", nil, err
	}

	if s.welcome != nil {
		msg := &queue.WelcomeMessage{
			Id:       user.ID.Hex(),
			To:       user.Email,
			Username: user.Username,
		}
		if err := queue.ProcessWelcome(msg, s.welcome); err != nil {
			// Registration stands even when the welcome mail cannot be queued.
			fmt.Println("failed to enqueue welcome email:", err)
		}
	}

	token, err := s.CreateAuthToken(user.ID.Hex(), user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Login verifies an email/password pair and returns a signed auth token
// together with the user. Whether the email is unknown or the password is
// wrong, the caller sees the same Unauthorized error.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.store.FindUser(ctx, bson.M{"email": email})
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid credentials", errs.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("%w: invalid credentials", errs.ErrUnauthorized)
	}

	token, err := s.CreateAuthToken(user.ID.Hex(), user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// GetUser resolves a user id (as carried in a token) to the stored user.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", errs.ErrUnauthorized)
	}
	user, err := s.store.FindUser(ctx, bson.M{"_id": objectID})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", errs.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

// CreateAuthToken creates a signed JWT token carrying the user's id and role.
func (s *Service) CreateAuthToken(userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"id":   userID,
		"role": role,
		"exp":  time.Now().Add(tokenLifetime).Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString([]byte(s.signingKey))
	if err != nil {
		return "", errors.New("failed to create auth token")
	}

	return signedToken, nil
}

// ParseToken verifies a signed token and extracts the caller's id and role.
// Expired, malformed or wrongly signed tokens all yield ErrUnauthorized.
func ParseToken(signingKey, tokenStr string) (string, string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(signingKey), nil
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	userID, _ := claims["id"].(string)
	role, _ := claims["role"].(string)
	if userID == "" {
		return "", "", fmt.Errorf("%w: token has no subject", errs.ErrUnauthorized)
	}
	return userID, role, nil
}
