package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"parley/config"
	"parley/pkg/database"
)

const usage = `
Parley - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Apply pending embedded migrations
  status      List migrations and core table sizes

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate status
`

var coreTables = []string{"profiles", "conversations", "participants", "messages", "attachments", "message_reactions", "outbox_events"}

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := config.LoadConfig()
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer pool.Close()

	switch flag.Arg(0) {
	case "up":
		applied, err := database.Migrate(ctx, pool)
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		if len(applied) == 0 {
			log.Println("Schema is up to date")
		}
		for _, name := range applied {
			log.Printf("Applied %s", name)
		}
	case "status":
		migrations, err := database.Status(ctx, pool)
		if err != nil {
			log.Fatalf("Status failed: %v", err)
		}
		for _, m := range migrations {
			state := "pending"
			if m.Applied {
				state = "applied"
			}
			log.Printf("%-40s %s", m.Version, state)
		}
		for _, table := range coreTables {
			exists, err := database.TableExists(ctx, pool, table)
			if err != nil || !exists {
				log.Printf("Table %-20s missing", table)
				continue
			}
			count, _ := database.TableCount(ctx, pool, table)
			log.Printf("Table %-20s %d rows", table, count)
		}
	default:
		fmt.Printf("Unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}
