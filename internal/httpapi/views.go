package httpapi

import (
	"time"

	"botadmin/internal/store"
)

// Response shapes. Password hashes and sealed secrets never leave the
// service; secrets render as masked previews only at creation time.

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      store.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userView(u store.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt}
}

func userViews(users []store.User) []userResponse {
	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = userView(u)
	}
	return out
}

type channelResponse struct {
	ID        int64             `json:"id"`
	Kind      store.ChannelKind `json:"kind"`
	Enabled   bool              `json:"enabled"`
	HasSecret bool              `json:"has_secret"`
	CreatedAt time.Time         `json:"created_at"`
}

type botResponse struct {
	ID                string                     `json:"id"`
	Name              string                     `json:"name"`
	OrganizationID    string                     `json:"organization_id,omitempty"`
	SystemPrompt      string                     `json:"system_prompt"`
	GroundingEnabled  bool                       `json:"grounding_enabled"`
	AccessibleUserIDs []string                   `json:"accessible_user_ids"`
	ModelConfigs      []store.ModelConfig        `json:"model_configs"`
	Channels          []channelResponse          `json:"channels"`
	QAItems           int                        `json:"qa_items"`
	OpenUnanswered    int                        `json:"open_unanswered"`
	Files             []store.UploadedFile       `json:"uploaded_files"`
	CreatedAt         time.Time                  `json:"created_at"`
}

func botView(b store.Bot) botResponse {
	channels := make([]channelResponse, len(b.Channels))
	for i, ch := range b.Channels {
		channels[i] = channelResponse{
			ID:        ch.ID,
			Kind:      ch.Kind,
			Enabled:   ch.Enabled,
			HasSecret: ch.EncSecret != "",
			CreatedAt: ch.CreatedAt,
		}
	}
	open := 0
	for _, q := range b.Unanswered {
		if !q.Resolved {
			open++
		}
	}
	return botResponse{
		ID:                b.ID,
		Name:              b.Name,
		OrganizationID:    b.OrganizationID,
		SystemPrompt:      b.SystemPrompt,
		GroundingEnabled:  b.GroundingEnabled,
		AccessibleUserIDs: b.AccessibleUserIDs,
		ModelConfigs:      b.ModelConfigs,
		Channels:          channels,
		QAItems:           len(b.QADatabase),
		OpenUnanswered:    open,
		Files:             b.Files,
		CreatedAt:         b.CreatedAt,
	}
}

func botViews(bots []store.Bot) []botResponse {
	out := make([]botResponse, len(bots))
	for i, b := range bots {
		out[i] = botView(b)
	}
	return out
}

type credentialResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Provider  store.Provider `json:"provider"`
	KeyMask   string         `json:"key_mask,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func credentialView(c store.CredentialVaultItem, mask string) credentialResponse {
	return credentialResponse{ID: c.ID, Name: c.Name, Provider: c.Provider, KeyMask: mask, CreatedAt: c.CreatedAt}
}
