// Package main provides the database migration CLI tool for LexHub.
//
// Migrations are embedded at build time for zero-config deployment in
// containerized environments. Supported commands: up, down, status,
// version, drop.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

// Build-time version information, set with -ldflags.
var (
	Version   = "1.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	name      = "migrator"
)

func main() {
	var (
		configHelp  = flag.Bool("help", false, "Show help information")
		showVersion = flag.Bool("version", false, "Show version information")
	)

	flag.Parse()

	if *showVersion {
		printVersionInfo()
		os.Exit(0)
	}

	if *configHelp || len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	command := os.Args[1]

	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	runner, err := NewMigrationRunner(config)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}

	defer func() {
		_ = runner.Close()
	}()

	switch command {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down()
	case "status":
		err = runner.Status()
	case "version":
		err = runner.Version()
	case "drop":
		err = runner.Drop()
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Command %q failed: %v", command, err)
	}
}

func printVersionInfo() {
	fmt.Printf("%s %s (commit %s, built %s)\n", name, Version, GitCommit, BuildTime)
}

func printUsage() {
	fmt.Printf(`Usage: %s <command>

Commands:
  up       Apply all pending migrations
  down     Roll back the last migration
  status   Show embedded migrations and current database version
  version  Show current database migration version
  drop     Drop all tables (destructive)

Environment:
  DATABASE_URL     PostgreSQL connection string (required)
  MIGRATION_TABLE  Migration tracking table (default: schema_migrations)
`, name)
}
