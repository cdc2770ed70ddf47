// Package profile holds the explicit runtime configuration for the chatbot server.
package profile

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the configuration to start the main server.
// It is constructed once at startup and passed by reference; there is
// no process-wide singleton.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the server
	Addr string
	// Port is the binding port for the server
	Port int

	// Temperature applies to all chat completions
	Temperature float32

	// OpenAI provider settings
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Gemini provider settings (served through Google's OpenAI-compatible endpoint)
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	// MaxContextTokens bounds the conversation window sent to a provider
	MaxContextTokens int
	// MaxConcurrentCalls caps in-flight provider calls across all sessions
	MaxConcurrentCalls int64
	// ProviderRPS rate-limits each provider; zero disables the limiter
	ProviderRPS float64
	// RateLimitRPS throttles HTTP requests per client
	RateLimitRPS float64
	// RateLimitBurst is the per-client request burst
	RateLimitBurst int

	// SessionRetention is how long an idle session is kept before eviction
	SessionRetention time.Duration
	// CleanupInterval is the period between session eviction sweeps
	CleanupInterval time.Duration
}

// IsDev returns true unless running in prod mode.
func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Validate checks that the profile is usable.
func (p *Profile) Validate() error {
	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port: %d", p.Port)
	}
	if p.MaxContextTokens <= 0 {
		return errors.Errorf("max context tokens must be positive, got %d", p.MaxContextTokens)
	}
	if p.MaxConcurrentCalls <= 0 {
		return errors.Errorf("max concurrent calls must be positive, got %d", p.MaxConcurrentCalls)
	}
	if p.OpenAIAPIKey == "" && p.GeminiAPIKey == "" {
		return errors.New("no provider configured: set CHATBOT_OPENAI_API_KEY or CHATBOT_GEMINI_API_KEY")
	}
	return nil
}

// Load builds a Profile from environment variables (CHATBOT_ prefix) and
// an optional config file. Environment variables win over file values.
func Load(configFile string) (*Profile, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("chatbot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	p := &Profile{
		Mode:               v.GetString("mode"),
		Addr:               v.GetString("addr"),
		Port:               v.GetInt("port"),
		Temperature:        float32(v.GetFloat64("temperature")),
		OpenAIAPIKey:       v.GetString("openai.api.key"),
		OpenAIBaseURL:      v.GetString("openai.base.url"),
		OpenAIModel:        v.GetString("openai.model"),
		GeminiAPIKey:       v.GetString("gemini.api.key"),
		GeminiBaseURL:      v.GetString("gemini.base.url"),
		GeminiModel:        v.GetString("gemini.model"),
		MaxContextTokens:   v.GetInt("max.context.tokens"),
		MaxConcurrentCalls: v.GetInt64("max.concurrent.calls"),
		ProviderRPS:        v.GetFloat64("provider.rps"),
		RateLimitRPS:       v.GetFloat64("rate.limit.rps"),
		RateLimitBurst:     v.GetInt("rate.limit.burst"),
		SessionRetention:   v.GetDuration("session.retention"),
		CleanupInterval:    v.GetDuration("cleanup.interval"),
	}

	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid profile")
	}
	return p, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8080)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("openai.base.url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("gemini.base.url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("max.context.tokens", 4096)
	v.SetDefault("max.concurrent.calls", 8)
	v.SetDefault("provider.rps", 0)
	v.SetDefault("rate.limit.rps", 10)
	v.SetDefault("rate.limit.burst", 20)
	v.SetDefault("session.retention", 24*time.Hour)
	v.SetDefault("cleanup.interval", 10*time.Minute)
}
