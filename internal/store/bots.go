package store

func (s *Store) Bots() []Bot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Bot, len(s.bots))
	for i, b := range s.bots {
		out[i] = cloneBot(b)
	}
	return out
}

func (s *Store) BotByID(id string) (Bot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, i := s.botByIDLocked(id); i >= 0 {
		return cloneBot(b), true
	}
	return Bot{}, false
}

// AddBot creates a bot with one default model config and owner access. When
// the bot belongs to an organization its bot quota is checked and consumed.
func (s *Store) AddBot(name, orgID, ownerID string, defaultModel ModelConfig) (Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if orgID != "" {
		oi := s.orgIndexLocked(orgID)
		if oi < 0 {
			return Bot{}, ErrNotFound
		}
		if !s.orgs[oi].CanCreateBot() {
			return Bot{}, ErrQuotaExceeded
		}
		s.orgs[oi].BotsUsed++
	}

	defaultModel.ID = s.ids.NextItemID()
	defaultModel.IsDefault = true
	b := Bot{
		ID:                s.ids.NewID(),
		Name:              name,
		OrganizationID:    orgID,
		AccessibleUserIDs: []string{},
		ModelConfigs:      []ModelConfig{defaultModel},
		Channels:          []IntegrationChannel{},
		QADatabase:        []QAItem{},
		Unanswered:        []UnansweredQuestion{},
		Files:             []UploadedFile{},
		Conversations:     []ConversationLog{},
		CreatedAt:         s.now(),
	}
	if ownerID != "" {
		b.AccessibleUserIDs = append(b.AccessibleUserIDs, ownerID)
	}
	s.bots = append(s.bots, b)
	s.logger.Info().Str("bot_id", b.ID).Str("name", name).Msg("bot created")
	s.changed()
	return cloneBot(b), nil
}

// BotUpdate carries settings edits; empty strings and nil pointers mean
// "leave as is".
type BotUpdate struct {
	Name             string
	SystemPrompt     *string
	GroundingEnabled *bool
}

func (s *Store) UpdateBot(id string, upd BotUpdate) error {
	ok := s.updateBot(id, func(b *Bot) {
		if upd.Name != "" {
			b.Name = upd.Name
		}
		if upd.SystemPrompt != nil {
			b.SystemPrompt = *upd.SystemPrompt
		}
		if upd.GroundingEnabled != nil {
			b.GroundingEnabled = *upd.GroundingEnabled
		}
	})
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteBot removes the bot entirely. Access lists referencing it live on
// the bot itself, so nothing else needs scrubbing; the org's bot counter is
// released and a session pointed at the bot is deselected.
func (s *Store) DeleteBot(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx := s.botByIDLocked(id)
	if idx < 0 {
		return ErrNotFound
	}
	if orgID := s.bots[idx].OrganizationID; orgID != "" {
		if oi := s.orgIndexLocked(orgID); oi >= 0 && s.orgs[oi].BotsUsed > 0 {
			s.orgs[oi].BotsUsed--
		}
	}
	s.bots = append(s.bots[:idx], s.bots[idx+1:]...)
	if s.currentBotID == id {
		s.currentBotID = ""
	}
	s.logger.Info().Str("bot_id", id).Msg("bot deleted")
	s.changed()
	return nil
}

// UpdateCurrentBot applies a mutation to the session's selected bot. It is
// the single primitive beneath every current-bot convenience action and
// silently no-ops when no bot is selected.
func (s *Store) UpdateCurrentBot(mutate func(*Bot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateBotLocked(s.currentBotID, mutate)
}

func (s *Store) updateBot(id string, mutate func(*Bot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateBotLocked(id, mutate)
}

func (s *Store) updateBotLocked(id string, mutate func(*Bot)) bool {
	_, idx := s.botByIDLocked(id)
	if idx < 0 {
		return false
	}
	mutate(&s.bots[idx])
	s.changed()
	return true
}

func (s *Store) botByIDLocked(id string) (Bot, int) {
	if id == "" {
		return Bot{}, -1
	}
	for i, b := range s.bots {
		if b.ID == id {
			return b, i
		}
	}
	return Bot{}, -1
}

// Q&A database

func (s *Store) AddQAItem(botID, question, answer string) (QAItem, bool) {
	item := QAItem{ID: s.ids.NextItemID(), Question: question, Answer: answer, CreatedAt: s.now()}
	ok := s.updateBot(botID, func(b *Bot) {
		b.QADatabase = append(b.QADatabase, item)
	})
	return item, ok
}

func (s *Store) AddQAItemToCurrentBot(question, answer string) (QAItem, bool) {
	s.mu.Lock()
	id := s.currentBotID
	s.mu.Unlock()
	return s.AddQAItem(id, question, answer)
}

func (s *Store) UpdateQAItem(botID string, itemID int64, question, answer string) bool {
	found := false
	s.updateBot(botID, func(b *Bot) {
		for i := range b.QADatabase {
			if b.QADatabase[i].ID == itemID {
				b.QADatabase[i].Question = question
				b.QADatabase[i].Answer = answer
				found = true
				return
			}
		}
	})
	return found
}

func (s *Store) DeleteQAItem(botID string, itemID int64) bool {
	found := false
	s.updateBot(botID, func(b *Bot) {
		for i := range b.QADatabase {
			if b.QADatabase[i].ID == itemID {
				b.QADatabase = append(b.QADatabase[:i], b.QADatabase[i+1:]...)
				found = true
				return
			}
		}
	})
	return found
}

// Unanswered questions

func (s *Store) AddUnansweredQuestion(botID, question, channel string) (UnansweredQuestion, bool) {
	item := UnansweredQuestion{ID: s.ids.NextItemID(), Question: question, Channel: channel, CreatedAt: s.now()}
	ok := s.updateBot(botID, func(b *Bot) {
		b.Unanswered = append([]UnansweredQuestion{item}, b.Unanswered...)
	})
	return item, ok
}

// ResolveUnansweredQuestion marks the question resolved and, when an answer
// is supplied, promotes the pair into the Q&A database.
func (s *Store) ResolveUnansweredQuestion(botID string, itemID int64, answer string) bool {
	found := false
	s.updateBot(botID, func(b *Bot) {
		for i := range b.Unanswered {
			if b.Unanswered[i].ID == itemID {
				b.Unanswered[i].Resolved = true
				if answer != "" {
					b.QADatabase = append(b.QADatabase, QAItem{
						ID:        s.ids.NextItemID(),
						Question:  b.Unanswered[i].Question,
						Answer:    answer,
						CreatedAt: s.now(),
					})
				}
				found = true
				return
			}
		}
	})
	return found
}

// Uploaded files

func (s *Store) AddFile(botID, name string, sizeBytes int64) (UploadedFile, bool) {
	f := UploadedFile{ID: s.ids.NextItemID(), Name: name, SizeBytes: sizeBytes, Status: FilePendingUpload, CreatedAt: s.now()}
	ok := s.updateBot(botID, func(b *Bot) {
		b.Files = append(b.Files, f)
	})
	return f, ok
}

func (s *Store) SetFileStatus(botID string, fileID int64, status FileStatus, errMsg string) bool {
	found := false
	s.updateBot(botID, func(b *Bot) {
		for i := range b.Files {
			if b.Files[i].ID == fileID {
				b.Files[i].Status = status
				b.Files[i].Error = errMsg
				found = true
				return
			}
		}
	})
	return found
}

func (s *Store) DeleteFile(botID string, fileID int64) bool {
	found := false
	s.updateBot(botID, func(b *Bot) {
		for i := range b.Files {
			if b.Files[i].ID == fileID {
				b.Files = append(b.Files[:i], b.Files[i+1:]...)
				found = true
				return
			}
		}
	})
	return found
}

// Conversation logs, newest first.

func (s *Store) AddConversationLog(botID string, entry ConversationLog) (ConversationLog, bool) {
	entry.ID = s.ids.NextItemID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	ok := s.updateBot(botID, func(b *Bot) {
		b.Conversations = append([]ConversationLog{entry}, b.Conversations...)
	})
	return entry, ok
}

func (s *Store) AddLogToCurrentBot(entry ConversationLog) (ConversationLog, bool) {
	s.mu.Lock()
	id := s.currentBotID
	s.mu.Unlock()
	return s.AddConversationLog(id, entry)
}

// Model configs. After any mutation a non-empty list has exactly one
// default.

func (s *Store) AddModelConfig(botID string, cfg ModelConfig) (ModelConfig, bool) {
	cfg.ID = s.ids.NextItemID()
	ok := s.updateBot(botID, func(b *Bot) {
		b.ModelConfigs = append(b.ModelConfigs, cfg)
		normalizeDefaults(b.ModelConfigs, pickDefault(b.ModelConfigs, cfg))
	})
	return cfg, ok
}

func (s *Store) DeleteModelConfig(botID string, cfgID int64) error {
	var opErr error
	ok := s.updateBot(botID, func(b *Bot) {
		idx := -1
		for i := range b.ModelConfigs {
			if b.ModelConfigs[i].ID == cfgID {
				idx = i
				break
			}
		}
		if idx < 0 {
			opErr = ErrNotFound
			return
		}
		if len(b.ModelConfigs) == 1 {
			opErr = ErrLastModel
			return
		}
		b.ModelConfigs = append(b.ModelConfigs[:idx], b.ModelConfigs[idx+1:]...)
		normalizeDefaults(b.ModelConfigs, 0)
	})
	if !ok {
		return ErrNotFound
	}
	return opErr
}

func (s *Store) SetDefaultModelConfig(botID string, cfgID int64) error {
	var opErr error
	ok := s.updateBot(botID, func(b *Bot) {
		idx := -1
		for i := range b.ModelConfigs {
			if b.ModelConfigs[i].ID == cfgID {
				idx = i
				break
			}
		}
		if idx < 0 {
			opErr = ErrNotFound
			return
		}
		normalizeDefaults(b.ModelConfigs, idx)
	})
	if !ok {
		return ErrNotFound
	}
	return opErr
}

// pickDefault keeps the existing default unless the new config asked to be
// it (or nothing is default yet).
func pickDefault(configs []ModelConfig, added ModelConfig) int {
	if added.IsDefault {
		return len(configs) - 1
	}
	for i, mc := range configs {
		if mc.IsDefault && mc.ID != added.ID {
			return i
		}
	}
	return 0
}

func normalizeDefaults(configs []ModelConfig, defaultIdx int) {
	if len(configs) == 0 {
		return
	}
	if defaultIdx < 0 || defaultIdx >= len(configs) {
		defaultIdx = 0
	}
	for i := range configs {
		configs[i].IsDefault = i == defaultIdx
	}
}

// Integration channels

type ChannelUpdate struct {
	Enabled   *bool
	EncSecret *string
}

func (s *Store) AddChannel(botID string, kind ChannelKind, encSecret string, enabled bool) (IntegrationChannel, bool) {
	ch := IntegrationChannel{ID: s.ids.NextItemID(), Kind: kind, Enabled: enabled, EncSecret: encSecret, CreatedAt: s.now()}
	ok := s.updateBot(botID, func(b *Bot) {
		b.Channels = append(b.Channels, ch)
	})
	return ch, ok
}

func (s *Store) AddChannelToCurrentBot(kind ChannelKind, encSecret string, enabled bool) (IntegrationChannel, bool) {
	s.mu.Lock()
	id := s.currentBotID
	s.mu.Unlock()
	return s.AddChannel(id, kind, encSecret, enabled)
}

func (s *Store) UpdateChannel(botID string, channelID int64, upd ChannelUpdate) bool {
	found := false
	s.updateBot(botID, func(b *Bot) {
		for i := range b.Channels {
			if b.Channels[i].ID == channelID {
				if upd.Enabled != nil {
					b.Channels[i].Enabled = *upd.Enabled
				}
				if upd.EncSecret != nil {
					b.Channels[i].EncSecret = *upd.EncSecret
				}
				found = true
				return
			}
		}
	})
	return found
}

func (s *Store) DeleteChannel(botID string, channelID int64) bool {
	found := false
	s.updateBot(botID, func(b *Bot) {
		for i := range b.Channels {
			if b.Channels[i].ID == channelID {
				b.Channels = append(b.Channels[:i], b.Channels[i+1:]...)
				found = true
				return
			}
		}
	})
	return found
}
