package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"support-chat/internal/config"
	"support-chat/internal/identity"
)

func main() {
	email := flag.String("email", "", "Admin email the token is issued for")
	ttl := flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "Usage: admintoken -email <admin-email> [-ttl 12h]")
		fmt.Fprintln(os.Stderr, "  Signs with JWT_SECRET and JWT_ISSUER from the environment")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// signing needs no user store
	resolver := identity.NewAdminResolver(cfg.JWTSecret, cfg.JWTIssuer, nil, 0)
	token, err := resolver.IssueToken(*email, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
