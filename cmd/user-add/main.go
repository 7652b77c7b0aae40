package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"keepit/internal/apperr"
	"keepit/internal/auth"
	"keepit/internal/config"
	"keepit/internal/quota"
	"keepit/internal/store/sqlstore"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/user-add <email>")
		os.Exit(2)
	}
	email := strings.TrimSpace(os.Args[1])
	if !auth.ValidEmail(strings.ToLower(email)) {
		fmt.Fprintln(os.Stderr, "a valid email is required")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	confirm, err := promptPassword("Confirm: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if password != confirm {
		fmt.Fprintln(os.Stderr, "passwords do not match")
		os.Exit(1)
	}

	if err := addUser(context.Background(), cfg, email, password); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "created %s\n", strings.ToLower(email))
}

// addUser registers the account through the same path as the HTTP API so
// the instance user quota still applies.
func addUser(ctx context.Context, cfg *config.Config, email, password string) error {
	store, err := sqlstore.New(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	instance, err := quota.Load(cfg.InstancePlan, cfg.InstanceConfigFile)
	if err != nil {
		return err
	}
	if err := quota.NewGate(instance, store).CheckUsers(ctx); err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenExpiry)
	if err != nil {
		return err
	}
	_, err = auth.NewService(store, tokens, zerolog.Nop()).Register(ctx, email, password)
	if errors.Is(err, apperr.ErrEmailTaken) {
		return fmt.Errorf("user %q already exists", email)
	}
	return err
}

func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(pass)), nil
}
