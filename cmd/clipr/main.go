package main

import (
	"log"

	"github.com/clipr-link/clipr/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		log.Fatalf("Failed to initialize the application: %v", err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
