package store

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func (s *Store) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]User(nil), s.users...)
}

func (s *Store) UserByID(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userByIDLocked(id)
}

func (s *Store) UserByName(username string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, true
		}
	}
	return User{}, false
}

// AddUser creates a user and, when accessibleBotIDs is given, appends the
// new id onto each named bot's access list. Usernames are unique.
func (s *Store) AddUser(username, password string, role Role, accessibleBotIDs []string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return User{}, ErrUsernameTaken
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           s.ids.NewID(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now(),
	}
	s.users = append(s.users, u)
	if accessibleBotIDs != nil {
		s.reconcileAccessLocked(u.ID, accessibleBotIDs)
	}
	s.logger.Info().Str("user_id", u.ID).Str("role", string(role)).Msg("user created")
	s.changed()
	return u, nil
}

// UserUpdate carries the fields of an update; zero values mean "leave as
// is". Password is only applied when non-empty, so a form submitted without
// one cannot wipe the stored hash.
type UserUpdate struct {
	Username string
	Role     Role
	Password string
}

// UpdateUser merges the update and, when accessibleBotIDs is non-nil,
// reconciles every bot's access list to match the new set exactly.
func (s *Store) UpdateUser(id string, upd UserUpdate, accessibleBotIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, u := range s.users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	if upd.Username != "" && upd.Username != s.users[idx].Username {
		for _, u := range s.users {
			if u.Username == upd.Username {
				return ErrUsernameTaken
			}
		}
		s.users[idx].Username = upd.Username
	}
	if upd.Role != "" {
		s.users[idx].Role = upd.Role
	}
	if upd.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(upd.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		s.users[idx].PasswordHash = string(hash)
	}
	if accessibleBotIDs != nil {
		s.reconcileAccessLocked(id, accessibleBotIDs)
	}
	s.changed()
	return nil
}

// DeleteUser removes the user and strips their id from every bot's access
// list. The seed admin account is refused.
func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.protectedUserID {
		return ErrProtectedUser
	}
	idx := -1
	for i, u := range s.users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	s.users = append(s.users[:idx], s.users[idx+1:]...)
	for i := range s.bots {
		s.bots[i].AccessibleUserIDs = removeString(s.bots[i].AccessibleUserIDs, id)
	}
	if s.currentUserID == id {
		s.currentUserID = ""
		s.currentBotID = ""
	}
	s.logger.Info().Str("user_id", id).Msg("user deleted")
	s.changed()
	return nil
}

// reconcileAccessLocked makes the set of bots listing userID equal to want:
// the id is appended where missing and stripped everywhere else.
func (s *Store) reconcileAccessLocked(userID string, want []string) {
	wanted := make(map[string]bool, len(want))
	for _, id := range want {
		wanted[id] = true
	}
	for i := range s.bots {
		has := s.bots[i].HasAccess(userID)
		switch {
		case wanted[s.bots[i].ID] && !has:
			s.bots[i].AccessibleUserIDs = append(s.bots[i].AccessibleUserIDs, userID)
		case !wanted[s.bots[i].ID] && has:
			s.bots[i].AccessibleUserIDs = removeString(s.bots[i].AccessibleUserIDs, userID)
		}
	}
}

func (s *Store) userByIDLocked(id string) (User, bool) {
	if id == "" {
		return User{}, false
	}
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

func removeString(in []string, target string) []string {
	out := in[:0]
	for _, v := range in {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
