package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/easexpo/marketplace-backend/internal/config"
	"github.com/easexpo/marketplace-backend/internal/database"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/pkg/validator"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// create-admin bootstraps the first administrator; self sign up never grants the admin role.
func main() {
	var email, password, fullName, dbURLFlag string
	flag.StringVar(&email, "email", "", "admin email (required)")
	flag.StringVar(&password, "password", "", "admin password (or ADMIN_PASSWORD)")
	flag.StringVar(&fullName, "name", "Administrator", "display name")
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.Parse()

	_ = godotenv.Load()

	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	if email == "" {
		log.Fatal("-email is required")
	}
	if !validator.IsValidPassword(password) {
		log.Fatalf("password must be at least %d characters", validator.MinPasswordLength)
	}

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{URL: dbURL, MaxConnections: 2, MaxIdleConnections: 1})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Roles:        pq.StringArray{models.RoleAdmin},
		IsActive:     true,
	}
	if err := database.NewUserRepository(db).Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			log.Fatalf("an account with email %s already exists", email)
		}
		log.Fatalf("failed to create admin: %v", err)
	}

	fmt.Printf("Admin %s created with id %s\n", user.Email, user.ID)
}
