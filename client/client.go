// Package client is a small REST client for the HabitLoop API, used by the
// operator shell. The auth token is kept in the system keyring between runs.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/zalando/go-keyring"

	"github.com/habitloop/habitloop/backend/models"
	"github.com/habitloop/habitloop/backend/server/analytics"
	"github.com/habitloop/habitloop/backend/server/checkin"
)

// KeyringService is the name of the service in the system keyring where the auth token is stored.
const KeyringService = "HabitLoop"

// KeyringKey is used to store and retrieve the auth token from the system keyring.
const KeyringKey = "auth_token"

// ServerURL is the URL of the server the client is connecting to.
var ServerURL string

// httpClient is the HTTP client used to make requests to the server.
var httpClient = &http.Client{}

// InitClient initializes the client with the server URL.
// This function must be called before using any other functions in the package.
func InitClient(serverURL string) {
	ServerURL = serverURL
}

// IsSignedIn reports whether an auth token is present in the keyring.
func IsSignedIn() bool {
	_, err := keyring.Get(KeyringService, KeyringKey)
	return err == nil
}

// SignOut removes the stored auth token from the keyring.
func SignOut() error {
	err := keyring.Delete(KeyringService, KeyringKey)
	if err != nil && err != keyring.ErrNotFound {
		return errors.New("failed to clear keyring: " + err.Error())
	}
	return nil
}

type apiError struct {
	Message string `json:"message"`
}

// doRequest sends a JSON request to the server, attaching the stored auth
// token when authed is true, and decodes the JSON response into out.
func doRequest(method, path string, body interface{}, authed bool, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequest(method, ServerURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if authed {
		token, err := keyring.Get(KeyringService, KeyringKey)
		if err != nil {
			return errors.New("not signed in")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := apiError{}
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
			return errors.New(apiErr.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func storeToken(token string) error {
	if err := keyring.Set(KeyringService, KeyringKey, token); err != nil {
		return errors.New("failed to store token in keyring: " + err.Error())
	}
	return nil
}

// Register creates a new account and stores the returned auth token.
func Register(username, email, password string) error {
	resp := tokenResponse{}
	err := doRequest("POST", "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, false, &resp)
	if err != nil {
		return err
	}
	return storeToken(resp.Token)
}

// SignIn authenticates and stores the returned auth token.
func SignIn(email, password string) error {
	resp := tokenResponse{}
	err := doRequest("POST", "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, false, &resp)
	if err != nil {
		return err
	}
	return storeToken(resp.Token)
}

// CreateHabit creates a habit for the signed-in user.
func CreateHabit(title, category, frequency, priority string) (*models.Habit, error) {
	habit := &models.Habit{}
	err := doRequest("POST", "/api/habits", map[string]string{
		"title":     title,
		"category":  category,
		"frequency": frequency,
		"priority":  priority,
	}, true, habit)
	if err != nil {
		return nil, err
	}
	return habit, nil
}

// Habits lists the signed-in user's habits.
func Habits() ([]models.Habit, error) {
	var habits []models.Habit
	if err := doRequest("GET", "/api/habits", nil, true, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// CheckIn records today's completion of a habit.
func CheckIn(habitID string) (*checkin.Result, error) {
	result := &checkin.Result{}
	err := doRequest("POST", "/api/habitlogs/checkin", map[string]string{
		"habitId": habitID,
	}, true, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stats fetches the signed-in user's analytics snapshot.
func Stats() (*analytics.Stats, error) {
	stats := &analytics.Stats{}
	if err := doRequest("GET", "/api/analytics/stats", nil, true, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// SeedDemo provisions the demo account with a couple of habits and a first
// check-in, signing in as the demo user. Re-running it signs in instead of
// registering again.
func SeedDemo() error {
	const demoEmail = "demo@example.com"
	const demoPassword = "Demo1234"

	err := Register("demo", demoEmail, demoPassword)
	if err != nil {
		// Most likely the account exists already; try signing in.
		if signInErr := SignIn(demoEmail, demoPassword); signInErr != nil {
			return err
		}
	}

	existing, err := Habits()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	seeds := []struct {
		title, category, frequency, priority string
	}{
		{"Morning run", "fitness", models.FrequencyDaily, models.PriorityHigh},
		{"Read 20 pages", "learning", models.FrequencyDaily, models.PriorityMedium},
		{"Weekly review", "productivity", models.FrequencyWeekly, models.PriorityLow},
	}

	for i, seed := range seeds {
		habit, err := CreateHabit(seed.title, seed.category, seed.frequency, seed.priority)
		if err != nil {
			return err
		}
		if i == 0 {
			if _, err := CheckIn(habit.ID.Hex()); err != nil {
				return err
			}
		}
	}
	return nil
}
