package store

import "time"

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleClientAdmin  Role = "client-admin"
	RoleClientEditor Role = "client-editor"
	RoleClientViewer Role = "client-viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClientAdmin, RoleClientEditor, RoleClientViewer:
		return true
	}
	return false
}

// CanEditBots reports whether the role may mutate bot configuration.
func (r Role) CanEditBots() bool {
	return r == RoleAdmin || r == RoleClientAdmin || r == RoleClientEditor
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderCustom    Provider = "custom"
)

type ModelConfig struct {
	ID           int64    `json:"id"`
	Provider     Provider `json:"provider"`
	Model        string   `json:"model"`
	CredentialID string   `json:"credential_id"`
	IsDefault    bool     `json:"is_default"`
}

type ChannelKind string

const (
	ChannelTelegram  ChannelKind = "telegram"
	ChannelInstagram ChannelKind = "instagram"
	ChannelWebWidget ChannelKind = "web-widget"
)

// IntegrationChannel connects a bot to an external surface. EncSecret holds
// the channel credential (bot token, app secret) sealed by the crypto
// envelope; it is never stored or served in plaintext.
type IntegrationChannel struct {
	ID        int64       `json:"id"`
	Kind      ChannelKind `json:"kind"`
	Enabled   bool        `json:"enabled"`
	EncSecret string      `json:"enc_secret,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type QAItem struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type UnansweredQuestion struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Channel   string    `json:"channel"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}

type FileStatus string

const (
	FilePendingUpload    FileStatus = "pending_upload"
	FileProcessingUpload FileStatus = "processing_upload"
	FilePendingRAG       FileStatus = "pending_rag"
	FileProcessingRAG    FileStatus = "processing_rag"
	FileReady            FileStatus = "ready"
	FileError            FileStatus = "error"
)

type UploadedFile struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	SizeBytes int64      `json:"size_bytes"`
	Status    FileStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type ConversationLog struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channel"`
	UserName  string    `json:"user_name"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Answered  bool      `json:"answered"`
	CreatedAt time.Time `json:"created_at"`
}

type Bot struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	OrganizationID    string               `json:"organization_id,omitempty"`
	SystemPrompt      string               `json:"system_prompt"`
	GroundingEnabled  bool                 `json:"grounding_enabled"`
	AccessibleUserIDs []string             `json:"accessible_user_ids"`
	ModelConfigs      []ModelConfig        `json:"model_configs"`
	Channels          []IntegrationChannel `json:"channels"`
	QADatabase        []QAItem             `json:"qa_database"`
	Unanswered        []UnansweredQuestion `json:"unanswered_questions"`
	Files             []UploadedFile       `json:"uploaded_files"`
	Conversations     []ConversationLog    `json:"conversation_logs"`
	CreatedAt         time.Time            `json:"created_at"`
}

// DefaultModel returns the config marked default, or false when the bot has
// no model configs at all.
func (b Bot) DefaultModel() (ModelConfig, bool) {
	for _, mc := range b.ModelConfigs {
		if mc.IsDefault {
			return mc, true
		}
	}
	if len(b.ModelConfigs) > 0 {
		return b.ModelConfigs[0], true
	}
	return ModelConfig{}, false
}

func (b Bot) HasAccess(userID string) bool {
	for _, id := range b.AccessibleUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CredentialVaultItem is a named provider API key. EncAPIKey is the sealed
// envelope form; model configs reference the item by id only.
type CredentialVaultItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Provider  Provider  `json:"provider"`
	EncAPIKey string    `json:"enc_api_key"`
	CreatedAt time.Time `json:"created_at"`
}

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

type SubscriptionStatus string

const (
	SubActive   SubscriptionStatus = "active"
	SubTrialing SubscriptionStatus = "trialing"
	SubPastDue  SubscriptionStatus = "past_due"
	SubCanceled SubscriptionStatus = "canceled"
)

type Organization struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Slug               string             `json:"slug"`
	Plan               Plan               `json:"plan"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	BotsQuota          int                `json:"bots_quota"`
	BotsUsed           int                `json:"bots_used"`
	APICallsQuota      int64              `json:"api_calls_quota"`
	APICallsUsed       int64              `json:"api_calls_used"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (o Organization) CanCreateBot() bool {
	return o.BotsUsed < o.BotsQuota
}

// CanUseAPI treats a zero quota as unlimited.
func (o Organization) CanUseAPI() bool {
	return o.APICallsQuota == 0 || o.APICallsUsed < o.APICallsQuota
}

type Invite struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	Token      string     `json:"token"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PlanQuotas maps each plan to its bot and monthly API-call allowances.
// Zero API calls on free means no API access; zero on enterprise means
// unlimited, matching CanUseAPI.
var PlanQuotas = map[Plan]struct {
	Bots     int
	APICalls int64
}{
	PlanFree:       {Bots: 1, APICalls: 0},
	PlanPro:        {Bots: 5, APICalls: 1000},
	PlanEnterprise: {Bots: 999, APICalls: 0},
}
