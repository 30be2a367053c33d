package domain

import (
	"encoding/json"
	"net/url"
	"strings"
)

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case UserRole, AssistantRole, SystemRole:
		return true
	}
	return false
}

// Provider names the upstream wire protocol.
type Provider string

const (
	// ProviderOllama speaks the local-server NDJSON protocol.
	ProviderOllama Provider = "ollama"
	// ProviderLMStudio speaks the OpenAI-compatible SSE protocol.
	ProviderLMStudio Provider = "lmstudio"
)

// ProviderInfo describes a supported provider for clients building a settings form.
type ProviderInfo struct {
	Provider       Provider `json:"provider"`
	Name           string   `json:"name"`
	Protocol       string   `json:"protocol"`
	DefaultBaseURL string   `json:"defaultBaseUrl"`
}

func SupportedProviders() []ProviderInfo {
	return []ProviderInfo{
		{Provider: ProviderOllama, Name: "Ollama", Protocol: "local-server", DefaultBaseURL: "http://localhost:11434"},
		{Provider: ProviderLMStudio, Name: "LM Studio (OpenAI API)", Protocol: "openai-compatible", DefaultBaseURL: "http://localhost:1234/v1"},
	}
}

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinPenalty     = -2.0
	MaxPenalty     = 2.0
	MinMaxTokens   = 16
	MaxMaxTokens   = 8192
)

const DefaultSystemPrompt = "You are a helpful on-device AI assistant. Keep responses concise."

// Settings is the per-request configuration bag sent by the client.
type Settings struct {
	Provider         Provider `json:"provider"`
	BaseURL          string   `json:"baseUrl"`
	Model            string   `json:"model"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"top_p"`
	PresencePenalty  float64  `json:"presence_penalty"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
	MaxTokens        int      `json:"max_tokens"`
	System           string   `json:"system"`
	EnableTTS        bool     `json:"enableTTS"`
	EnableSTT        bool     `json:"enableSTT"`
	AllowFileRead    bool     `json:"allowFileRead"`
	AllowShell       bool     `json:"allowShell"`
	AllowedRoot      string   `json:"allowedRoot"`
}

func DefaultSettings() Settings {
	return Settings{
		Provider:         ProviderOllama,
		BaseURL:          "http://localhost:11434",
		Model:            "llama3.1",
		Temperature:      0.7,
		TopP:             0.95,
		PresencePenalty:  0,
		FrequencyPenalty: 0,
		MaxTokens:        1024,
		System:           DefaultSystemPrompt,
	}
}

// UnmarshalJSON fills fields missing from the payload with their defaults.
// A null payload leaves the zero value, the same as an absent object.
func (s *Settings) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*s = Settings{}
		return nil
	}
	type plain Settings
	p := plain(DefaultSettings())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Settings(p)
	return nil
}

// Validate rejects out-of-range values instead of clamping them.
func (s Settings) Validate() error {
	if s.Provider != ProviderOllama && s.Provider != ProviderLMStudio {
		return ValidationError("settings.provider must be one of %q or %q, got %q", ProviderOllama, ProviderLMStudio, s.Provider)
	}
	u, err := url.Parse(strings.TrimSpace(s.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError("settings.baseUrl must be an absolute http(s) URL, got %q", s.BaseURL)
	}
	if strings.TrimSpace(s.Model) == "" {
		return ValidationError("settings.model is required")
	}
	if s.Temperature < MinTemperature || s.Temperature > MaxTemperature {
		return ValidationError("settings.temperature must be between %g and %g, got %g", MinTemperature, MaxTemperature, s.Temperature)
	}
	if s.TopP < MinTopP || s.TopP > MaxTopP {
		return ValidationError("settings.top_p must be between %g and %g, got %g", MinTopP, MaxTopP, s.TopP)
	}
	if s.PresencePenalty < MinPenalty || s.PresencePenalty > MaxPenalty {
		return ValidationError("settings.presence_penalty must be between %g and %g, got %g", MinPenalty, MaxPenalty, s.PresencePenalty)
	}
	if s.FrequencyPenalty < MinPenalty || s.FrequencyPenalty > MaxPenalty {
		return ValidationError("settings.frequency_penalty must be between %g and %g, got %g", MinPenalty, MaxPenalty, s.FrequencyPenalty)
	}
	if s.MaxTokens < MinMaxTokens || s.MaxTokens > MaxMaxTokens {
		return ValidationError("settings.max_tokens must be between %d and %d, got %d", MinMaxTokens, MaxMaxTokens, s.MaxTokens)
	}
	return nil
}

// ValidateConversation checks that the conversation is non-empty and uses known roles.
func ValidateConversation(conversation []ChatMessage) error {
	if len(conversation) == 0 {
		return ValidationError("messages must contain at least one message")
	}
	for i, msg := range conversation {
		if !msg.Role.Valid() {
			return ValidationError("messages[%d].role must be one of system, user, assistant, got %q", i, msg.Role)
		}
	}
	return nil
}

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Settings Settings      `json:"settings"`
}

func (r ChatRequest) Validate() error {
	if err := ValidateConversation(r.Messages); err != nil {
		return err
	}
	if r.Settings == (Settings{}) {
		return ValidationError("settings is required")
	}
	return r.Settings.Validate()
}

// WithSystemPrompt prepends the system prompt unless it is empty or the
// conversation already opens with a system message. The input is not modified.
func WithSystemPrompt(conversation []ChatMessage, system string) []ChatMessage {
	if strings.TrimSpace(system) == "" || (len(conversation) > 0 && conversation[0].Role == SystemRole) {
		return append([]ChatMessage(nil), conversation...)
	}
	out := make([]ChatMessage, 0, len(conversation)+1)
	out = append(out, ChatMessage{Role: SystemRole, Content: system})
	return append(out, conversation...)
}

// RequestState tracks one chat request through the orchestrator.
type RequestState string

const (
	StateReceived   RequestState = "received"
	StateValidating RequestState = "validating"
	StateStreaming  RequestState = "streaming"
	StateCompleted  RequestState = "completed"
	StateFailed     RequestState = "failed"
	StateCancelled  RequestState = "cancelled"
)

func (s RequestState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
