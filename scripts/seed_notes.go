package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"keepit/internal/apperr"
	"keepit/internal/auth"
	"keepit/internal/config"
	"keepit/internal/models"
	"keepit/internal/notes"
	"keepit/internal/sharing"
	"keepit/internal/store/sqlstore"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var sampleNotes = []string{
	"Had a productive morning meeting",
	"Finished the quarterly report",
	"Reviewed pull requests",
	"Fixed a critical bug in production",
	"Standup notes: discussed blockers",
	"Lunch with the team",
	"Brainstormed new feature ideas",
	"Updated documentation",
	"Deployed new version to staging",
	"Code review session",
	"Worked on performance optimization",
	"Customer feedback review",
	"Sprint planning completed",
	"Refactored authentication module",
	"Database migration successful",
}

var colors = []string{"", "#fff475", "#ccff90", "#a7ffeb", "#aecbfa", "#fdcfe8"}

const demoPassword = "password123"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal(err)
	}
	store, err := sqlstore.New(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenExpiry)
	if err != nil {
		log.Fatal(err)
	}
	authSvc := auth.NewService(store, tokens, zerolog.Nop())
	sh := sharing.NewService(store, zerolog.Nop())
	ns := notes.NewService(store, sh, nil, zerolog.Nop())

	demo := mustUser(ctx, authSvc, "demo@keepit.local")
	friend := mustUser(ctx, authSvc, "friend@keepit.local")
	fmt.Printf("Seeding notes for %s (id %d)\n", demo.Email, demo.ID)

	var created []*models.Note
	for i, title := range sampleNotes {
		in := notes.Input{
			Title:    title,
			Content:  fmt.Sprintf("Seeded note %d", i+1),
			Color:    colors[rand.Intn(len(colors))],
			IsPinned: rand.Intn(5) == 0,
		}
		for j := rand.Intn(4); j > 0; j-- {
			in.Checkboxes = append(in.Checkboxes, models.Checkbox{Label: fmt.Sprintf("item %d", j), Checked: rand.Intn(2) == 0})
		}
		n, err := ns.Create(ctx, demo.ID, in)
		if err != nil {
			log.Printf("Error creating note: %v", err)
			continue
		}
		created = append(created, n)
	}

	if _, err := ns.CreateTemplate(ctx, demo.ID, notes.Input{
		Title:      "Weekly review",
		Checkboxes: []models.Checkbox{{Label: "Inbox zero"}, {Label: "Plan next week"}, {Label: "Update goals"}},
	}); err != nil {
		log.Printf("Error creating template: %v", err)
	}

	// Share a couple of notes with the second demo user.
	for i, perm := range []models.Permission{models.PermissionRead, models.PermissionWrite} {
		if i >= len(created) {
			break
		}
		inv, err := sh.CreateInvitation(ctx, sharing.InviteRequest{
			NoteID: created[i].ID, InviterID: demo.ID, Email: friend.Email, Permission: perm, ExpiresInDays: 7,
		})
		if err != nil {
			log.Printf("Error inviting: %v", err)
			continue
		}
		if _, err := sh.AcceptInvitation(ctx, inv.Token, friend.ID); err != nil {
			log.Printf("Error accepting: %v", err)
		}
	}

	fmt.Printf("Inserted %d notes and shared %d with %s\n", len(created), min(2, len(created)), friend.Email)
}

// mustUser registers email or reuses the existing account.
func mustUser(ctx context.Context, a *auth.Service, email string) *models.User {
	u, err := a.Register(ctx, email, demoPassword)
	if errors.Is(err, apperr.ErrEmailTaken) {
		_, u, err = a.Login(ctx, email, demoPassword)
	}
	if err != nil {
		log.Fatalf("Could not prepare user %s: %v", email, err)
	}
	return u
}
