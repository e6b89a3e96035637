package store

func (s *Store) Credentials() []CredentialVaultItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CredentialVaultItem(nil), s.vault...)
}

func (s *Store) CredentialByID(id string) (CredentialVaultItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.vault {
		if c.ID == id {
			return c, true
		}
	}
	return CredentialVaultItem{}, false
}

// AddCredential stores a vault item. The API key must already be sealed by
// the caller; the store never sees plaintext secrets.
func (s *Store) AddCredential(name string, provider Provider, encAPIKey string) CredentialVaultItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := CredentialVaultItem{
		ID:        s.ids.NewID(),
		Name:      name,
		Provider:  provider,
		EncAPIKey: encAPIKey,
		CreatedAt: s.now(),
	}
	s.vault = append(s.vault, c)
	s.logger.Info().Str("credential_id", c.ID).Str("provider", string(provider)).Msg("credential added")
	s.changed()
	return c
}

type CredentialUpdate struct {
	Name      string
	Provider  Provider
	EncAPIKey string
}

// UpdateCredential merges non-empty fields by id; unknown ids no-op.
func (s *Store) UpdateCredential(id string, upd CredentialUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.vault {
		if s.vault[i].ID != id {
			continue
		}
		if upd.Name != "" {
			s.vault[i].Name = upd.Name
		}
		if upd.Provider != "" {
			s.vault[i].Provider = upd.Provider
		}
		if upd.EncAPIKey != "" {
			s.vault[i].EncAPIKey = upd.EncAPIKey
		}
		s.changed()
		return true
	}
	return false
}

// DeleteCredential removes the vault item and clears the credential
// reference on every model config across every bot that pointed to it.
// Nothing else enforces this relation, so the cascade must stay here.
// Deleting an unknown id is a silent no-op.
func (s *Store) DeleteCredential(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.vault {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.vault = append(s.vault[:idx], s.vault[idx+1:]...)
	for bi := range s.bots {
		for mi := range s.bots[bi].ModelConfigs {
			if s.bots[bi].ModelConfigs[mi].CredentialID == id {
				s.bots[bi].ModelConfigs[mi].CredentialID = ""
			}
		}
	}
	s.logger.Info().Str("credential_id", id).Msg("credential deleted")
	s.changed()
}
