package main

import (
	"github.com/joho/godotenv"
	_ "github.com/sglre6355/covenbot/internal/modules/relay"
)

// version is set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0" ./cmd/covenbot
var version = "dev"

func main() {
	// Variables already in the environment take precedence over .env
	_ = godotenv.Load(".env")

	Execute()
}
