package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/easexpo/marketplace-backend/internal/config"
	"github.com/easexpo/marketplace-backend/internal/database"
	"github.com/joho/godotenv"
)

// Child tables first so the listing reads in dependency order; CASCADE covers the rest.
var tables = []string{
	"payment_audits",
	"payments",
	"feedback",
	"bookings",
	"stalls",
	"events",
	"stall_owner_applications",
	"refresh_tokens",
	"audit_logs",
	"users",
}

func main() {
	var dbURLFlag string
	var keepUsers bool
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&keepUsers, "keep-users", false, "keep accounts, applications and tokens; clear marketplace data only")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	targets := tables
	if keepUsers {
		targets = tables[:6]
	}

	fmt.Println("Connected to database. Truncating tables...")
	truncateSQL := "TRUNCATE TABLE "
	for i, t := range targets {
		if i > 0 {
			truncateSQL += ", "
		}
		truncateSQL += t
	}
	truncateSQL += " RESTART IDENTITY CASCADE"

	if _, err := db.Exec(truncateSQL); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}
	fmt.Println("Data cleared.")

	fmt.Println("Post-clear row counts:")
	for _, t := range tables {
		var count int
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
