package store

import "golang.org/x/crypto/bcrypt"

// Login authenticates by exact username match and bcrypt comparison. On
// success the current user is set and the current bot is initialized to the
// first bot visible to that user, if any. On failure nothing changes.
func (s *Store) Login(username, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			return false
		}
		s.currentUserID = u.ID
		s.currentBotID = ""
		if visible := s.visibleBotsLocked(u); len(visible) > 0 {
			s.currentBotID = visible[0].ID
		}
		s.logger.Debug().Str("user_id", u.ID).Msg("login")
		return true
	}
	return false
}

func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUserID = ""
	s.currentBotID = ""
}

func (s *Store) CurrentUser() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userByIDLocked(s.currentUserID)
}

func (s *Store) CurrentBot() (Bot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, i := s.botByIDLocked(s.currentBotID); i >= 0 {
		return cloneBot(b), true
	}
	return Bot{}, false
}

// SetCurrentBot selects a bot for the session; unknown ids are ignored.
func (s *Store) SetCurrentBot(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, i := s.botByIDLocked(id); i >= 0 {
		s.currentBotID = id
	}
}

// VisibleBots returns every bot for admins and the membership subset for
// any other role. Unknown ids inside access lists are tolerated.
func (s *Store) VisibleBots(u User) []Bot {
	s.mu.Lock()
	defer s.mu.Unlock()
	bots := s.visibleBotsLocked(u)
	out := make([]Bot, len(bots))
	for i, b := range bots {
		out[i] = cloneBot(b)
	}
	return out
}

func (s *Store) visibleBotsLocked(u User) []Bot {
	if u.Role == RoleAdmin {
		return s.bots
	}
	out := make([]Bot, 0)
	for _, b := range s.bots {
		if b.HasAccess(u.ID) {
			out = append(out, b)
		}
	}
	return out
}
