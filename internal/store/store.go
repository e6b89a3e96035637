package store

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrProtectedUser = errors.New("user is protected")
	ErrQuotaExceeded = errors.New("plan quota exceeded")
	ErrLastModel     = errors.New("bot must keep at least one model config")
	ErrInviteExpired = errors.New("invite expired or already accepted")
)

// Snapshot is the persisted slice of the state. Session selection
// (current user/bot) is deliberately absent.
type Snapshot struct {
	Users           []User                `json:"users"`
	Bots            []Bot                 `json:"bots"`
	CredentialVault []CredentialVaultItem `json:"credential_vault"`
	Organizations   []Organization        `json:"organizations"`
	Invites         []Invite              `json:"invites"`
}

// Store owns the full in-memory dataset. Every mutation happens under one
// mutex, so callers observe each action as atomic; after a successful
// mutation the change hook receives a fresh snapshot for persistence.
// The hook runs under the store lock and must not call back into the store.
type Store struct {
	mu sync.Mutex

	users   []User
	bots    []Bot
	vault   []CredentialVaultItem
	orgs    []Organization
	invites []Invite

	currentUserID string
	currentBotID  string

	protectedUserID string

	ids      IDSource
	logger   zerolog.Logger
	onChange func(Snapshot)
	now      func() time.Time
}

type Config struct {
	IDs      IDSource
	Logger   zerolog.Logger
	OnChange func(Snapshot)
	Now      func() time.Time
}

func New(cfg Config) *Store {
	if cfg.IDs == nil {
		cfg.IDs = NewIDSource()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		ids:      cfg.IDs,
		logger:   cfg.Logger,
		onChange: cfg.OnChange,
		now:      cfg.Now,
	}
}

// Snapshot returns a deep copy of the persisted slice of state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Users:           make([]User, len(s.users)),
		Bots:            make([]Bot, len(s.bots)),
		CredentialVault: make([]CredentialVaultItem, len(s.vault)),
		Organizations:   make([]Organization, len(s.orgs)),
		Invites:         make([]Invite, len(s.invites)),
	}
	copy(snap.Users, s.users)
	copy(snap.CredentialVault, s.vault)
	copy(snap.Organizations, s.orgs)
	copy(snap.Invites, s.invites)
	for i, b := range s.bots {
		snap.Bots[i] = cloneBot(b)
	}
	return snap
}

// Restore replaces the whole state from a snapshot and advances the item id
// sequence past everything restored. Session selection is reset.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = append([]User(nil), snap.Users...)
	s.vault = append([]CredentialVaultItem(nil), snap.CredentialVault...)
	s.orgs = append([]Organization(nil), snap.Organizations...)
	s.invites = append([]Invite(nil), snap.Invites...)
	s.bots = make([]Bot, len(snap.Bots))
	var maxItem int64
	for i, b := range snap.Bots {
		s.bots[i] = cloneBot(b)
		if m := maxItemID(b); m > maxItem {
			maxItem = m
		}
	}
	s.currentUserID = ""
	s.currentBotID = ""
	for _, u := range s.users {
		if u.Username == seedAdminUsername {
			s.protectedUserID = u.ID
			break
		}
	}
	if adv, ok := s.ids.(interface{ advanceTo(int64) }); ok {
		adv.advanceTo(maxItem)
	}
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange(s.snapshotLocked())
	}
}

func cloneBot(b Bot) Bot {
	out := b
	out.AccessibleUserIDs = append([]string(nil), b.AccessibleUserIDs...)
	out.ModelConfigs = append([]ModelConfig(nil), b.ModelConfigs...)
	out.Channels = append([]IntegrationChannel(nil), b.Channels...)
	out.QADatabase = append([]QAItem(nil), b.QADatabase...)
	out.Unanswered = append([]UnansweredQuestion(nil), b.Unanswered...)
	out.Files = append([]UploadedFile(nil), b.Files...)
	out.Conversations = append([]ConversationLog(nil), b.Conversations...)
	return out
}

func maxItemID(b Bot) int64 {
	var m int64
	for _, v := range b.ModelConfigs {
		if v.ID > m {
			m = v.ID
		}
	}
	for _, v := range b.Channels {
		if v.ID > m {
			m = v.ID
		}
	}
	for _, v := range b.QADatabase {
		if v.ID > m {
			m = v.ID
		}
	}
	for _, v := range b.Unanswered {
		if v.ID > m {
			m = v.ID
		}
	}
	for _, v := range b.Files {
		if v.ID > m {
			m = v.ID
		}
	}
	for _, v := range b.Conversations {
		if v.ID > m {
			m = v.ID
		}
	}
	return m
}
