package store

import (
	"encoding/json"
	"time"
)

// Settings is the per-user settings document stored in settings.data.
type Settings struct {
	Language                            string          `json:"language,omitempty"`
	Agent                               string          `json:"agent,omitempty"`
	LLMModel                            string          `json:"llm_model,omitempty"`
	LLMAPIKey                           string          `json:"llm_api_key,omitempty"`
	LLMBaseURL                          string          `json:"llm_base_url,omitempty"`
	ConfirmationMode                    bool            `json:"confirmation_mode"`
	SecurityAnalyzer                    string          `json:"security_analyzer,omitempty"`
	RemoteRuntimeResourceFactor         int             `json:"remote_runtime_resource_factor,omitempty"`
	EnableDefaultCondenser              bool            `json:"enable_default_condenser"`
	EnableSoundNotifications            bool            `json:"enable_sound_notifications"`
	EnableProactiveConversationStarters bool            `json:"enable_proactive_conversation_starters"`
	UserConsentsToAnalytics             *bool           `json:"user_consents_to_analytics,omitempty"`
	SearchAPIKey                        string          `json:"search_api_key,omitempty"`
	Email                               string          `json:"email,omitempty"`
	EmailVerified                       *bool           `json:"email_verified,omitempty"`
	MCPConfig                           json.RawMessage `json:"mcp_config,omitempty"`
}

// ProviderToken is a git provider credential. Host is empty for the
// provider's public instance.
type ProviderToken struct {
	Token string `json:"token"`
	Host  string `json:"host,omitempty"`
}

type CustomSecret struct {
	Secret      string `json:"secret"`
	Description string `json:"description"`
}

// UserSecrets is sealed as a whole before it reaches user_secrets.sealed.
type UserSecrets struct {
	ProviderTokens map[string]ProviderToken `json:"provider_tokens"`
	CustomSecrets  map[string]CustomSecret  `json:"custom_secrets"`
}

func NewUserSecrets() UserSecrets {
	return UserSecrets{
		ProviderTokens: map[string]ProviderToken{},
		CustomSecrets:  map[string]CustomSecret{},
	}
}

type ConversationMetadata struct {
	ConversationID     string    `json:"conversation_id"`
	UserID             string    `json:"user_id"`
	Title              string    `json:"title"`
	SelectedRepository string    `json:"selected_repository,omitempty"`
	SelectedBranch     string    `json:"selected_branch,omitempty"`
	GitProvider        string    `json:"git_provider,omitempty"`
	Trigger            string    `json:"trigger,omitempty"`
	LLMModel           string    `json:"llm_model,omitempty"`
	AccumulatedCost    float64   `json:"accumulated_cost"`
	PromptTokens       int64     `json:"prompt_tokens"`
	CompletionTokens   int64     `json:"completion_tokens"`
	TotalTokens        int64     `json:"total_tokens"`
	CreatedAt          time.Time `json:"created_at"`
	LastUpdatedAt      time.Time `json:"last_updated_at"`
}

// ConversationPage is one page of a user's conversations, newest first.
// NextPageID is set only when the page is full.
type ConversationPage struct {
	Conversations []ConversationMetadata `json:"results"`
	NextPageID    string                 `json:"next_page_id,omitempty"`
}
