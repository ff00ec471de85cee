package main

import (
	"github.com/joho/godotenv"

	"github.com/nordbank/banking-platform-backend/cmd"
	"github.com/nordbank/banking-platform-backend/internal/logger"
)

// Version is the official version of the application.
const Version = "1.4.0"

// GitCommit is populated at build time:
// go build -ldflags "-X main.GitCommit=$(git rev-parse --short HEAD)"
var GitCommit string

func main() {
	if err := godotenv.Load(); err != nil {
		logger.DefaultLogger.Debugf("no .env file loaded: %v", err)
	}

	if err := cmd.SetupCLI(Version, GitCommit).Execute(); err != nil {
		logger.DefaultLogger.Fatalf("executing command: %v", err)
	}
}
