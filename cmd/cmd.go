// Package cmd provides the papercite command line interface.
//
// Commands:
//   - serve: HTTP API server streaming retrieval-augmented answers
//   - migrate: apply database migrations and exit
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/papercite/papercite/internal/log"
)

// Execute is the main entry point for the papercite CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("papercite - retrieval-augmented Q&A over an academic paper library")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  papercite serve [addr] Start the HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  papercite migrate      Apply database migrations and exit")
	fmt.Println("  papercite --version    Show version information")
	fmt.Println("  papercite --help       Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  GEMINI_API_KEY   Google AI API key (required for serve)")
	fmt.Println("  DATABASE_URL     PostgreSQL URL (overrides postgres_* config)")
	fmt.Println("  DEBUG            Enable debug logging when set")
}
