package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/config"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/store"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return
	}

	cfg := config.Load()
	db, err := store.NewDB(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	switch command := args[0]; command {
	case "up":
		if err := store.Migrate(db.Client); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := store.Rollback(db.Client); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println("last migration rolled back")
	case "status":
		if err := store.Status(db.Client); err != nil {
			log.Fatalf("migration status failed: %v", err)
		}
	default:
		fmt.Printf("unknown command: %s\n", command)
		flag.Usage()
	}
}

func usage() {
	fmt.Println("usage: migrator [command]")
	fmt.Println("commands:")
	fmt.Println("  up      apply all pending migrations")
	fmt.Println("  down    roll back the latest migration")
	fmt.Println("  status  show the state of every migration")
}
