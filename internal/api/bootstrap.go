package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"oj/internal/model"
	"oj/internal/store"
)

// BootstrapAdmin creates the reserved id=0 "root" admin account when no
// admin account exists yet. It is idempotent across restarts.
func BootstrapAdmin(ctx context.Context, users *store.UserStore, passwordPath string) error {
	has, err := users.HasAdmin(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	password, err := generatePassword(32)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := users.CreateWithID(ctx, 0, "root", string(hash), model.RoleAdmin); err != nil {
		return err
	}

	if passwordPath != "" {
		if err := os.WriteFile(passwordPath, []byte(password+"\n"), 0o600); err != nil {
			return err
		}
		log.Printf("initial root account created; credentials written to %s", passwordPath)
		return nil
	}
	log.Printf("initial root account created username=root password=%s", password)
	return nil
}

func generatePassword(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
