// Package engine orchestrates conversation turns: load state, trim,
// assemble the prompt, invoke the provider, persist the result.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/franksymon/Chatbot-api/internal/errors"
	"github.com/franksymon/Chatbot-api/plugin/ai"
	"github.com/franksymon/Chatbot-api/plugin/ai/prompt"
	"github.com/franksymon/Chatbot-api/plugin/ai/session"
	"github.com/franksymon/Chatbot-api/plugin/ai/timeout"
	"github.com/franksymon/Chatbot-api/plugin/ai/trim"
)

// Config tunes the engine.
type Config struct {
	// MaxContextTokens is the trim budget applied to each turn.
	MaxContextTokens int
	// MaxConcurrentCalls caps in-flight provider calls across sessions.
	MaxConcurrentCalls int64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxContextTokens:   4096,
		MaxConcurrentCalls: 8,
	}
}

// Engine serves conversation turns. Turns for distinct sessions run
// fully concurrently; synchronous turns for the same session are
// serialized on the store's per-session lock.
type Engine struct {
	gateway *ai.Gateway
	store   *session.Store
	prompts *prompt.Manager
	counter trim.TokenCounter
	sem     *semaphore.Weighted
	config  Config
}

// NewEngine creates a conversation engine. A nil counter falls back to
// the heuristic estimator.
func NewEngine(gateway *ai.Gateway, store *session.Store, prompts *prompt.Manager, counter trim.TokenCounter, cfg Config) *Engine {
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 4096
	}
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = 8
	}
	if counter == nil {
		counter = trim.EstimatingCounter{}
	}
	return &Engine{
		gateway: gateway,
		store:   store,
		prompts: prompts,
		counter: counter,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrentCalls),
		config:  cfg,
	}
}

// SubmitRequest carries one turn's caller input.
type SubmitRequest struct {
	SessionID  string
	Message    string
	Provider   string
	PromptType string
}

// Result is the outcome of a completed synchronous turn.
type Result struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

// validated holds a request after pre-flight checks; nothing is
// mutated before these pass.
type validated struct {
	sessionID  string
	message    string
	provider   string
	promptType string
	model      ai.ChatModel
}

func (e *Engine) prepare(req SubmitRequest) (*validated, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.InvalidArgument("message is required")
	}
	if req.Provider == "" {
		return nil, errors.MissingProvider()
	}
	model, err := e.gateway.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	v := &validated{
		sessionID:  req.SessionID,
		message:    req.Message,
		provider:   req.Provider,
		promptType: req.PromptType,
		model:      model,
	}
	if v.sessionID == "" {
		v.sessionID = session.DefaultSessionID
	}
	if v.promptType == "" {
		v.promptType = prompt.DefaultType
	}
	return v, nil
}

// Submit runs one synchronous turn. The turn is all-or-nothing: on any
// provider failure neither the human nor an assistant message is
// persisted.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	v, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	lock := e.store.TurnLock(v.sessionID)
	lock.Lock()
	defer lock.Unlock()

	human := ai.HumanMessage(v.message)
	final := e.assemble(v, human)

	reply, err := e.invoke(ctx, v.model, final)
	if err != nil {
		slog.Warn("turn failed at provider",
			"session_id", v.sessionID,
			"provider", v.provider,
			"error", err)
		return nil, errors.ProviderFailed(v.provider, err)
	}

	response := Normalize(reply.Content)
	assistant := ai.AssistantMessage(response)
	e.store.AppendTurn(v.sessionID, human, &assistant, v.provider, v.promptType)

	return &Result{SessionID: v.sessionID, Response: response}, nil
}

// assemble loads session state, bounds it to the token budget with the
// new human message included, and frames it with the prompt type's
// instructions.
func (e *Engine) assemble(v *validated, human ai.Message) []ai.Message {
	state := e.store.Load(v.sessionID)

	window := make([]ai.Message, 0, len(state.Messages)+1)
	window = append(window, state.Messages...)
	window = append(window, human)

	trimmed := trim.Trim(window, e.counter, trim.Options{
		MaxTokens:     e.config.MaxContextTokens,
		IncludeSystem: true,
		StartOnHuman:  true,
	})

	return e.prompts.Assemble(v.promptType, trimmed)
}

func (e *Engine) invoke(ctx context.Context, model ai.ChatModel, messages []ai.Message) (ai.Message, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return ai.Message{}, err
	}
	defer e.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, timeout.InvokeTimeout)
	defer cancel()
	return model.Invoke(ctx, messages)
}

// History returns the session's snapshot for export or display.
func (e *Engine) History(sessionID string) (session.State, error) {
	if sessionID == "" {
		sessionID = session.DefaultSessionID
	}
	return e.store.Snapshot(sessionID)
}

// PromptTypes returns the static catalogue and the default tag.
func (e *Engine) PromptTypes() (map[string]string, string) {
	return e.prompts.Types(), prompt.DefaultType
}

// TestConnection probes a provider through the gateway.
func (e *Engine) TestConnection(ctx context.Context, provider string) (*ai.ConnectionTest, error) {
	if provider == "" {
		return nil, errors.MissingProvider()
	}
	return e.gateway.TestConnection(ctx, provider)
}

// Normalize collapses all interior whitespace runs, including embedded
// newlines, to single spaces and trims the ends. Applied to final
// responses only; raw streamed chunks are delivered unnormalized.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
