// Package main provides operator utilities for PlantsPack accounts.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"plantspack/internal/config"
	"plantspack/internal/database"
)

const usage = `Usage:
  admin set-tier <email> <free|medium|premium>  - Override a subscription tier
  admin set-password <email> <password>         - Replace a password
  admin promote <email>                         - Promote user to admin
  admin demote <email>                          - Demote user from admin
  admin list-admins                             - List all admins
  admin delete-user-content <email>             - Soft-delete a user's posts and comments
  admin anonymize <email>                       - Delete and anonymize an account`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := newAdminTools(db).run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
