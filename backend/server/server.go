// Package server exposes the HTTP surface: a mux router with JSON handlers
// that map each request onto one service call, plus the middleware chain
// (recovery, bearer-token auth, role gating, CORS, access logging).
package server

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/habitloop/habitloop/backend/models"
	"github.com/habitloop/habitloop/backend/server/analytics"
	"github.com/habitloop/habitloop/backend/server/auth"
	"github.com/habitloop/habitloop/backend/server/challenges"
	"github.com/habitloop/habitloop/backend/server/checkin"
	contextKey "github.com/habitloop/habitloop/backend/server/context_key"
	"github.com/habitloop/habitloop/backend/server/habits"
)

// Server bundles the services behind the HTTP surface. All dependencies are
// injected; the server holds no ambient state of its own.
type Server struct {
	auth       *auth.Service
	habits     *habits.Service
	checkins   *checkin.Service
	analytics  *analytics.Service
	challenges *challenges.Service
	signingKey string
}

// New creates a Server over the given services.
func New(signingKey string, a *auth.Service, h *habits.Service, c *checkin.Service, an *analytics.Service, ch *challenges.Service) *Server {
	return &Server{
		auth:       a,
		habits:     h,
		checkins:   c,
		analytics:  an,
		challenges: ch,
		signingKey: signingKey,
	}
}

// authMiddleware resolves the bearer token in the Authorization header to the
// caller's user id and role and injects them into the request context. Requests
// without a valid token are rejected with 401 before reaching any handler.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		splitToken := strings.Split(authHeader, "Bearer ")
		if authHeader == "" || len(splitToken) != 2 {
			writeErrorMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, role, err := auth.ParseToken(s.signingKey, splitToken[1])
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), contextKey.UserIDKey, userID)
		ctx = context.WithValue(ctx, contextKey.RoleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a route on the caller's role. It must run after
// authMiddleware.
func requireRole(role string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if callerRole, _ := r.Context().Value(contextKey.RoleKey).(string); callerRole != role {
				writeErrorMessage(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recoveryMiddleware recovers from panics and provides a generic error message
// to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// callerID returns the authenticated caller's user id from the request context.
func callerID(r *http.Request) string {
	id, _ := r.Context().Value(contextKey.UserIDKey).(string)
	return id
}

// Router builds the full route table with the middleware chain applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)

	protected.HandleFunc("/auth/me", s.handleMe).Methods("GET")

	protected.HandleFunc("/habits", s.handleListHabits).Methods("GET")
	protected.HandleFunc("/habits", s.handleCreateHabit).Methods("POST")
	protected.HandleFunc("/habits/{id}", s.handleGetHabit).Methods("GET")
	protected.HandleFunc("/habits/{id}", s.handleUpdateHabit).Methods("PUT")
	protected.HandleFunc("/habits/{id}", s.handleDeleteHabit).Methods("DELETE")

	protected.HandleFunc("/habitlogs/checkin", s.handleCheckIn).Methods("POST")
	protected.HandleFunc("/habitlogs/{habitId}", s.handleListLogs).Methods("GET")

	protected.HandleFunc("/analytics/stats", s.handleStats).Methods("GET")

	protected.HandleFunc("/challenges", s.handleListChallenges).Methods("GET")
	protected.HandleFunc("/challenges", s.handleCreateChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/join", s.handleJoinChallenge).Methods("POST")

	admin := protected.NewRoute().Subrouter()
	admin.Use(requireRole(models.RoleAdmin))
	admin.HandleFunc("/challenges/{id}", s.handleDeleteChallenge).Methods("DELETE")

	return recoveryMiddleware(r)
}

// Start runs the HTTP server at the given URL until it fails.
func Start(serverURL string, s *Server) error {
	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})

	corsRouter := handlers.CORS(corsOrigins, corsMethods, corsHeaders)(s.Router())
	loggingRouter := handlers.LoggingHandler(os.Stdout, corsRouter)

	u, err := url.Parse(serverURL)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      loggingRouter,
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return server.ListenAndServe()
}
