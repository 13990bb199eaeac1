package backend

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/habitloop/habitloop/backend/queue"
	"github.com/habitloop/habitloop/backend/server"
	"github.com/habitloop/habitloop/backend/server/analytics"
	"github.com/habitloop/habitloop/backend/server/auth"
	"github.com/habitloop/habitloop/backend/server/challenges"
	"github.com/habitloop/habitloop/backend/server/checkin"
	"github.com/habitloop/habitloop/backend/server/habits"
	"github.com/habitloop/habitloop/backend/server/notifications/email"
	"github.com/habitloop/habitloop/backend/storage/cache"
	storage "github.com/habitloop/habitloop/backend/storage/persistent"
)

// RunBackend builds the whole dependency graph (storage, cache, queue,
// services, HTTP server) and runs until interrupted. Every dependency is
// constructed here and injected downward; nothing holds ambient global state.
func RunBackend() {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY") // JWT signing key for token generation
	serverURL := os.Getenv("SERVER_URL")       // The URL where the server is running
	dbURI := os.Getenv("MONGODB_URI")          // MongoDB database URI
	dbName := os.Getenv("DB_NAME")             // The name of the MongoDB database
	redisURL := os.Getenv("REDIS_URL")         // Optional: Redis URL for the analytics cache
	rabbitMQURL := os.Getenv("RABBITMQ_URL")   // Optional: RabbitMQ URL for welcome mails
	smtpEmail := os.Getenv("SMTP_EMAIL")       // Optional: sender address for welcome mails
	smtpPassword := os.Getenv("SMTP_PASSWORD") // Optional: password of the sender account
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if signingKey == "" {
		log.Fatal("JWT_SIGNING_KEY must be set")
	}
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	// Storage: MongoDB when configured, otherwise the in-memory backend so the
	// server stays runnable without credentials.
	var store storage.StorageInterface
	if dbURI != "" {
		store, err = storage.NewStorage(dbName, dbURI)
		if err != nil {
			log.Fatal("error initializing storage: ", err)
		}
	} else {
		log.Println("MONGODB_URI not set, using in-memory storage")
		store = storage.NewMemoryStorage()
	}

	// Cache is optional: without Redis the analytics snapshots are simply
	// recomputed on every request.
	var appCache cache.CacheInterface
	if redisURL != "" {
		appCache, err = cache.NewCache(redisURL)
		if err != nil {
			log.Fatal("error connecting to cache: ", err)
		}
	}

	// The welcome-mail pipeline needs both the broker and an SMTP account.
	var welcomeQueue *queue.Queue
	if rabbitMQURL != "" && smtpEmail != "" && appCache != nil {
		if _, err := email.InitEmailService(smtpEmail, smtpPassword); err != nil {
			log.Fatal("error initializing email service: ", err)
		}
		welcomeQueue, err = queue.BuildWelcomeQueue(rabbitMQURL, 1, 2, appCache)
		if err != nil {
			log.Fatal("error building welcome queue: ", err)
		}
		if _, err := welcomeQueue.StartConsumers(ctx); err != nil {
			log.Fatal("error starting queue consumers: ", err)
		}
	}

	srv := server.New(
		signingKey,
		auth.NewService(store, signingKey, welcomeQueue),
		habits.NewService(store, appCache),
		checkin.NewService(store, appCache),
		analytics.NewService(store, appCache),
		challenges.NewService(store),
	)

	go func() {
		if err := server.Start(serverURL, srv); err != nil {
			log.Fatal("server stopped: ", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigs
	fmt.Println()
	fmt.Println(sig)

	// Release everything we constructed, in reverse order.
	cancel()
	if welcomeQueue != nil {
		if err := welcomeQueue.Close(); err != nil {
			log.Println("error closing queue: ", err)
		}
	}
	if appCache != nil {
		if err := appCache.Disconnect(); err != nil {
			log.Println("error disconnecting cache: ", err)
		}
	}
	if err := store.Disconnect(); err != nil {
		log.Println("error disconnecting storage: ", err)
	}
}
