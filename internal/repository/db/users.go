package db

import (
	"ai-chat/internal/logger"
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// VerifyPassword checks if the provided password matches the user's hashed password
func VerifyPassword(user *User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil
}

// SeedDemoUser creates the demo user if it doesn't exist
func SeedDemoUser(ctx context.Context, users UserStore) error {
	_, err := users.GetUserByUsername(ctx, "demo")
	if err == nil {
		logger.Log.Info("Demo user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("error looking up demo user: %w", err)
	}

	_, err = users.CreateUser(ctx, "demo", "demo@example.com", "demo123")
	if err != nil && !errors.Is(err, ErrUserExists) {
		return fmt.Errorf("error seeding demo user: %w", err)
	}

	logger.Log.Info("Demo user seeded successfully")
	return nil
}
