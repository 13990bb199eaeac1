package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/habitloop/habitloop/backend"
	"github.com/habitloop/habitloop/client"
	"github.com/habitloop/habitloop/cmd"
)

func main() {
	// "habitloop shell" opens the operator shell against a running server;
	// anything else runs the backend itself.
	if len(os.Args) > 1 && os.Args[1] == "shell" {
		err := godotenv.Load()
		if err != nil {
			fmt.Println("Error loading .env file")
		}

		serverURL := os.Getenv("SERVER_URL")
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}

		client.InitClient(serverURL)
		cmd.InitShell()
		cmd.Execute()
		return
	}

	backend.RunBackend()
}
