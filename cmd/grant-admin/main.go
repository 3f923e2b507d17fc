// Command grant-admin bootstraps the first administrator. It creates the
// user if the email is unknown and attaches a wildcard admin grant directly
// at the storage layer, since no granting admin exists yet.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"formscore.org/internal/auth"
	"formscore.org/internal/ids"
	"formscore.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn      = flag.String("dsn", os.Getenv("FORMSCORE_PG_DSN"), "PostgreSQL DSN")
		email    = flag.String("email", "", "administrator email")
		password = flag.String("password", "", "initial password (required when the user does not exist)")
		fullName = flag.String("name", "Administrator", "full name for a newly created user")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or FORMSCORE_PG_DSN")
	}
	if *email == "" {
		log.Fatal("missing -email")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	user, err := store.Users().FindByEmail(ctx, *email)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		if *password == "" {
			log.Fatalf("user %s does not exist: provide -password to create it", *email)
		}
		if err := auth.CheckPasswordStrength(*password); err != nil {
			log.Fatalf("create user: %v", err)
		}
		hash, err := auth.HashPassword(*password)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		now := time.Now().UTC()
		user = &auth.User{
			ID:           ids.New(),
			Email:        *email,
			PasswordHash: hash,
			FullName:     *fullName,
			Status:       auth.UserStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.Users().Create(ctx, user); err != nil {
			log.Fatalf("create user: %v", err)
		}
		log.Printf("created user %s (%s)", user.Email, user.ID)
	case err != nil:
		log.Fatalf("lookup user: %v", err)
	}

	grants, err := store.Grants().ListForUser(ctx, user.ID)
	if err != nil {
		log.Fatalf("list grants: %v", err)
	}
	now := time.Now().UTC()
	for _, g := range grants {
		if g.Company == "" && g.Category == "" && g.Level == auth.LevelAdmin && !g.Expired(now) {
			log.Printf("user %s already holds a wildcard admin grant (%s)", user.Email, g.ID)
			return
		}
	}

	grant := &auth.PermissionGrant{
		ID:        ids.New(),
		UserID:    user.ID,
		Level:     auth.LevelAdmin,
		GrantedBy: user.ID,
		GrantedAt: now,
	}
	if err := store.Grants().Create(ctx, grant); err != nil {
		log.Fatalf("create grant: %v", err)
	}

	_ = store.Audit().Append(ctx, &auth.AuditRecord{
		ID:         ids.New(),
		EntityType: "permission_grant",
		EntityID:   grant.ID,
		Action:     "bootstrap_admin",
		ActorID:    user.ID,
		After:      map[string]any{"user_id": user.ID, "level": "admin"},
		OccurredAt: now,
	})

	log.Printf("granted wildcard admin to %s (grant %s)", user.Email, grant.ID)
}
