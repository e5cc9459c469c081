package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"module5/portal/internal/app"
	"module5/portal/internal/auth"
	"module5/portal/internal/config"
	"module5/portal/internal/observability"
)

func main() {
	username := flag.String("username", "", "Username (3-50 characters)")
	email := flag.String("email", "", "Email address")
	flag.Parse()
	if *username == "" || *email == "" {
		fmt.Fprintln(os.Stderr, "--username and --email are required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	password, err := readPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read password: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := run(ctx, cfg, auth.SignupInput{Username: *username, Email: *email, Password: password}); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, in auth.SignupInput) error {
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := app.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			return err
		}
	}

	// Only the user store is needed here.
	cfg.Session.Backend = config.SessionBackendMemory
	stores, err := app.OpenStores(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	svc, err := auth.NewService(stores.Users, auth.ServiceConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
		Sessions:   stores.Sessions,
	})
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}

	u, err := svc.Signup(ctx, in)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Printf("user %s (%s) created with id %d\n", u.Username, u.Email, u.ID)
	return nil
}

// readPassword prompts twice on a terminal and reads one line otherwise.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
