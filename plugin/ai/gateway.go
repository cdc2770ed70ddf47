package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/franksymon/Chatbot-api/internal/errors"
	"github.com/franksymon/Chatbot-api/internal/profile"
	"github.com/franksymon/Chatbot-api/plugin/ai/timeout"
)

// ModelInfo describes a registered chat model.
type ModelInfo struct {
	Provider    string  `json:"provider"`
	ModelName   string  `json:"model_name"`
	Temperature float32 `json:"temperature"`
}

// Gateway resolves provider tags to chat models. The provider set is
// closed: only registered tags resolve, everything else is rejected.
type Gateway struct {
	mu     sync.RWMutex
	models map[string]registration
}

type registration struct {
	model ChatModel
	info  ModelInfo
}

// NewGateway creates an empty provider gateway.
func NewGateway() *Gateway {
	return &Gateway{
		models: make(map[string]registration),
	}
}

// Register adds a chat model under the given provider tag. A nil
// limiter leaves the model unthrottled.
func (g *Gateway) Register(tag string, model ChatModel, info ModelInfo, limiter *rate.Limiter) {
	if limiter != nil {
		model = &limitedModel{inner: model, limiter: limiter}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.models[tag] = registration{model: model, info: info}
}

// Resolve returns the chat model for the given provider tag.
func (g *Gateway) Resolve(tag string) (ChatModel, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	reg, ok := g.models[tag]
	if !ok {
		return nil, errors.UnsupportedProvider(tag)
	}
	return reg.model, nil
}

// Info returns the registered metadata for a provider tag.
func (g *Gateway) Info(tag string) (ModelInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	reg, ok := g.models[tag]
	return reg.info, ok
}

// Providers lists the registered provider tags.
func (g *Gateway) Providers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tags := make([]string, 0, len(g.models))
	for tag := range g.models {
		tags = append(tags, tag)
	}
	return tags
}

// ConnectionTest is the outcome of probing a provider.
type ConnectionTest struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	Provider     string    `json:"provider"`
	ModelInfo    ModelInfo `json:"model_info"`
	TestResponse string    `json:"test_response,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// TestConnection probes the provider with a short message and reports
// the outcome. Resolution failures are returned as errors; provider
// failures are reported inside the result.
func (g *Gateway) TestConnection(ctx context.Context, tag string) (*ConnectionTest, error) {
	model, err := g.Resolve(tag)
	if err != nil {
		return nil, err
	}
	info, _ := g.Info(tag)

	ctx, cancel := context.WithTimeout(ctx, timeout.ProbeTimeout)
	defer cancel()
	reply, err := model.Invoke(ctx, []Message{HumanMessage("Hello, test message.")})
	if err != nil {
		return &ConnectionTest{
			Success:   false,
			Message:   fmt.Sprintf("connection to %s failed", tag),
			Provider:  tag,
			ModelInfo: info,
			Error:     err.Error(),
		}, nil
	}
	if reply.Content == "" {
		return &ConnectionTest{
			Success:   false,
			Message:   fmt.Sprintf("connection to %s returned an empty response", tag),
			Provider:  tag,
			ModelInfo: info,
		}, nil
	}

	preview := reply.Content
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return &ConnectionTest{
		Success:      true,
		Message:      fmt.Sprintf("connection to %s ok", tag),
		Provider:     tag,
		ModelInfo:    info,
		TestResponse: preview,
	}, nil
}

// NewGatewayFromProfile builds a gateway with every provider the
// profile configures.
func NewGatewayFromProfile(p *profile.Profile) (*Gateway, error) {
	g := NewGateway()

	var limiterFor = func() *rate.Limiter {
		if p.ProviderRPS <= 0 {
			return nil
		}
		return rate.NewLimiter(rate.Limit(p.ProviderRPS), 1)
	}

	if p.OpenAIAPIKey != "" {
		model, err := NewChatModel(ModelConfig{
			APIKey:      p.OpenAIAPIKey,
			BaseURL:     p.OpenAIBaseURL,
			Model:       p.OpenAIModel,
			Temperature: p.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("configure openai: %w", err)
		}
		g.Register("openai", model, ModelInfo{
			Provider:    "openai",
			ModelName:   p.OpenAIModel,
			Temperature: p.Temperature,
		}, limiterFor())
	}

	if p.GeminiAPIKey != "" {
		model, err := NewChatModel(ModelConfig{
			APIKey:      p.GeminiAPIKey,
			BaseURL:     p.GeminiBaseURL,
			Model:       p.GeminiModel,
			Temperature: p.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("configure gemini: %w", err)
		}
		g.Register("gemini", model, ModelInfo{
			Provider:    "gemini",
			ModelName:   p.GeminiModel,
			Temperature: p.Temperature,
		}, limiterFor())
	}

	slog.Info("provider gateway initialized", "providers", g.Providers())
	return g, nil
}

// limitedModel throttles calls to the wrapped model.
type limitedModel struct {
	inner   ChatModel
	limiter *rate.Limiter
}

func (m *limitedModel) Invoke(ctx context.Context, messages []Message) (Message, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return Message{}, err
	}
	return m.inner.Invoke(ctx, messages)
}

func (m *limitedModel) Stream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	if err := m.limiter.Wait(ctx); err != nil {
		contentChan := make(chan string)
		errChan := make(chan error, 1)
		errChan <- err
		close(contentChan)
		close(errChan)
		return contentChan, errChan
	}
	return m.inner.Stream(ctx, messages)
}
