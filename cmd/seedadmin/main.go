package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"support-chat/internal/config"
	"support-chat/internal/db"
	"support-chat/internal/models"
	"support-chat/internal/repositories"
)

func main() {
	email := flag.String("email", "", "Admin email")
	name := flag.String("name", "", "Display name")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "Usage: seedadmin -email <admin-email> [-name <display-name>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	user, err := repositories.NewUserRepo(database).UpsertUser(ctx, models.User{
		ID:    uuid.NewString(),
		Email: *email,
		Name:  *name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to upsert admin: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Admin %s ready (id %s)\n", user.Email, user.ID)
}
