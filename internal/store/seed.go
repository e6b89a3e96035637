package store

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const seedAdminUsername = "admin"

// Seed creates the protected admin account when the store is empty. It is a
// no-op on a restored snapshot that already carries users.
func (s *Store) Seed(adminPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.users) > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := User{
		ID:           s.ids.NewID(),
		Username:     seedAdminUsername,
		PasswordHash: string(hash),
		Role:         RoleAdmin,
		CreatedAt:    s.now(),
	}
	s.users = append(s.users, admin)
	s.protectedUserID = admin.ID
	s.logger.Info().Str("user_id", admin.ID).Msg("seeded admin account")
	s.changed()
	return nil
}
