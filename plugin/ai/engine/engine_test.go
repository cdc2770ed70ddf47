package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franksymon/Chatbot-api/internal/errors"
	"github.com/franksymon/Chatbot-api/plugin/ai"
	"github.com/franksymon/Chatbot-api/plugin/ai/prompt"
	"github.com/franksymon/Chatbot-api/plugin/ai/session"
)

// scriptedModel is a deterministic ChatModel for tests. It records the
// message lists it receives and replies with a fixed text, optionally
// failing, either up front or after a number of streamed chunks.
type scriptedModel struct {
	mu        sync.Mutex
	reply     string
	err       error
	failAfter int // chunks delivered before a mid-stream failure; 0 fails up front
	received  [][]ai.Message
}

func (m *scriptedModel) record(messages []ai.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, messages)
}

func (m *scriptedModel) lastReceived() []ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return nil
	}
	return m.received[len(m.received)-1]
}

func (m *scriptedModel) Invoke(_ context.Context, messages []ai.Message) (ai.Message, error) {
	m.record(messages)
	if m.err != nil {
		return ai.Message{}, m.err
	}
	return ai.AssistantMessage(m.reply), nil
}

func (m *scriptedModel) Stream(ctx context.Context, messages []ai.Message) (<-chan string, <-chan error) {
	m.record(messages)
	contentChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errChan)

		if m.err != nil && m.failAfter == 0 {
			errChan <- m.err
			return
		}
		for i, word := range strings.Fields(m.reply) {
			if m.err != nil && i == m.failAfter {
				errChan <- m.err
				return
			}
			chunk := word
			if i > 0 {
				chunk = " " + word
			}
			select {
			case contentChan <- chunk:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return contentChan, errChan
}

func newTestEngine(model ai.ChatModel) (*Engine, *session.Store) {
	gateway := ai.NewGateway()
	gateway.Register("openai", model, ai.ModelInfo{Provider: "openai", ModelName: "test"}, nil)
	store := session.NewStore()
	eng := NewEngine(gateway, store, prompt.NewManager(), nil, DefaultConfig())
	return eng, store
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("First turn appends one human and one assistant message", func(t *testing.T) {
		model := &scriptedModel{reply: "hello there"}
		eng, _ := newTestEngine(model)

		result, err := eng.Submit(ctx, SubmitRequest{SessionID: "u1", Message: "hello", Provider: "openai"})
		require.NoError(t, err)
		assert.Equal(t, "hello there", result.Response)

		state, err := eng.History("u1")
		require.NoError(t, err)
		require.Len(t, state.Messages, 2)
		assert.Equal(t, ai.RoleHuman, state.Messages[0].Role)
		assert.Equal(t, "hello", state.Messages[0].Content)
		assert.Equal(t, ai.RoleAssistant, state.Messages[1].Role)
	})

	t.Run("Missing provider fails before any state mutation", func(t *testing.T) {
		model := &scriptedModel{reply: "hi"}
		eng, store := newTestEngine(model)

		_, err := eng.Submit(ctx, SubmitRequest{SessionID: "u1", Message: "hello"})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeMissingProvider))
		assert.Equal(t, 0, store.Len())
	})

	t.Run("Unknown provider is rejected", func(t *testing.T) {
		eng, _ := newTestEngine(&scriptedModel{})
		_, err := eng.Submit(ctx, SubmitRequest{Message: "hello", Provider: "mistral"})
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupportedProvider))
	})

	t.Run("Empty message is rejected", func(t *testing.T) {
		eng, _ := newTestEngine(&scriptedModel{})
		_, err := eng.Submit(ctx, SubmitRequest{Message: "   ", Provider: "openai"})
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArgument))
	})

	t.Run("Failed turn is all-or-nothing", func(t *testing.T) {
		model := &scriptedModel{reply: "ok"}
		eng, _ := newTestEngine(model)

		_, err := eng.Submit(ctx, SubmitRequest{SessionID: "u1", Message: "first", Provider: "openai"})
		require.NoError(t, err)

		model.err = fmt.Errorf("rate limited")
		_, err = eng.Submit(ctx, SubmitRequest{SessionID: "u1", Message: "second", Provider: "openai"})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeProviderError))

		state, err := eng.History("u1")
		require.NoError(t, err)
		assert.Len(t, state.Messages, 2)
	})

	t.Run("Response is whitespace-normalized", func(t *testing.T) {
		model := &scriptedModel{reply: "  line one\nline two\n\n  "}
		eng, _ := newTestEngine(model)

		result, err := eng.Submit(ctx, SubmitRequest{SessionID: "u1", Message: "q", Provider: "openai"})
		require.NoError(t, err)
		assert.Equal(t, "line one line two", result.Response)
	})

	t.Run("Session id defaults", func(t *testing.T) {
		model := &scriptedModel{reply: "ok"}
		eng, _ := newTestEngine(model)

		result, err := eng.Submit(ctx, SubmitRequest{Message: "q", Provider: "openai"})
		require.NoError(t, err)
		assert.Equal(t, session.DefaultSessionID, result.SessionID)
	})
}

func TestPromptFraming(t *testing.T) {
	ctx := context.Background()
	prompts := prompt.NewManager()

	t.Run("Assembled list opens with the prompt type instructions", func(t *testing.T) {
		model := &scriptedModel{reply: "ok"}
		eng, _ := newTestEngine(model)

		_, err := eng.Submit(ctx, SubmitRequest{Message: "q", Provider: "openai", PromptType: "documentation"})
		require.NoError(t, err)

		sent := model.lastReceived()
		require.NotEmpty(t, sent)
		assert.Equal(t, ai.RoleSystem, sent[0].Role)
		assert.Equal(t, prompts.Lookup("documentation").Instructions, sent[0].Content)
		assert.Equal(t, "q", sent[len(sent)-1].Content)
	})

	t.Run("Unknown prompt type falls back to general", func(t *testing.T) {
		model := &scriptedModel{reply: "ok"}
		eng, _ := newTestEngine(model)

		_, err := eng.Submit(ctx, SubmitRequest{Message: "q", Provider: "openai", PromptType: "astrology"})
		require.NoError(t, err)

		sent := model.lastReceived()
		assert.Equal(t, prompts.Lookup(prompt.DefaultType).Instructions, sent[0].Content)
	})

	t.Run("Prior history is included in order", func(t *testing.T) {
		model := &scriptedModel{reply: "answer"}
		eng, _ := newTestEngine(model)

		_, err := eng.Submit(ctx, SubmitRequest{SessionID: "u1", Message: "q1", Provider: "openai"})
		require.NoError(t, err)
		_, err = eng.Submit(ctx, SubmitRequest{SessionID: "u1", Message: "q2", Provider: "openai"})
		require.NoError(t, err)

		sent := model.lastReceived()
		require.Len(t, sent, 4) // instructions, q1, answer, q2
		assert.Equal(t, "q1", sent[1].Content)
		assert.Equal(t, "answer", sent[2].Content)
		assert.Equal(t, "q2", sent[3].Content)
	})
}

func TestTrimmingBoundsContext(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{reply: "short"}
	gateway := ai.NewGateway()
	gateway.Register("openai", model, ai.ModelInfo{}, nil)
	store := session.NewStore()
	eng := NewEngine(gateway, store, prompt.NewManager(), nil, Config{MaxContextTokens: 12, MaxConcurrentCalls: 2})

	for i := 0; i < 10; i++ {
		_, err := eng.Submit(ctx, SubmitRequest{SessionID: "u1", Message: "a long enough question to cost tokens", Provider: "openai"})
		require.NoError(t, err)
	}

	state, err := eng.History("u1")
	require.NoError(t, err)
	assert.Len(t, state.Messages, 20)

	// The provider never sees the whole history: instructions plus a
	// bounded window.
	sent := model.lastReceived()
	assert.Less(t, len(sent), 21)
	assert.Equal(t, ai.RoleSystem, sent[0].Role)
	assert.Equal(t, ai.RoleHuman, sent[1].Role)
}

func TestSubmitStream(t *testing.T) {
	ctx := context.Background()

	collect := func(events <-chan Event) []Event {
		var out []Event
		for ev := range events {
			out = append(out, ev)
		}
		return out
	}

	t.Run("Chunks are cumulative and terminate with done", func(t *testing.T) {
		model := &scriptedModel{reply: "one two three"}
		eng, _ := newTestEngine(model)

		events, err := eng.SubmitStream(ctx, SubmitRequest{SessionID: "u1", Message: "q", Provider: "openai"})
		require.NoError(t, err)

		out := collect(events)
		require.GreaterOrEqual(t, len(out), 3)
		assert.Equal(t, EventStart, out[0].Type)
		assert.Equal(t, EventDone, out[len(out)-1].Type)

		var lastChunk string
		for _, ev := range out {
			if ev.Type == EventChunk {
				// Cumulative: each chunk extends the previous one.
				assert.True(t, strings.HasPrefix(ev.Content, lastChunk))
				lastChunk = ev.Content
			}
		}
		assert.Equal(t, "one two three", lastChunk)

		state, err := eng.History("u1")
		require.NoError(t, err)
		require.Len(t, state.Messages, 2)
		assert.Equal(t, "one two three", state.Messages[1].Content)
	})

	t.Run("Streaming and sync turns produce the same normalized text", func(t *testing.T) {
		model := &scriptedModel{reply: "same deterministic answer"}
		eng, _ := newTestEngine(model)

		syncResult, err := eng.Submit(ctx, SubmitRequest{SessionID: "sync", Message: "q", Provider: "openai"})
		require.NoError(t, err)

		events, err := eng.SubmitStream(ctx, SubmitRequest{SessionID: "stream", Message: "q", Provider: "openai"})
		require.NoError(t, err)
		collect(events)

		streamState, err := eng.History("stream")
		require.NoError(t, err)
		assert.Equal(t, syncResult.Response, streamState.Messages[1].Content)
	})

	t.Run("Pre-flight failure returns an error, not a stream", func(t *testing.T) {
		eng, _ := newTestEngine(&scriptedModel{})
		_, err := eng.SubmitStream(ctx, SubmitRequest{Message: "q"})
		assert.True(t, errors.IsCode(err, errors.ErrCodeMissingProvider))
	})

	t.Run("Mid-stream failure emits terminal error and persists nothing", func(t *testing.T) {
		model := &scriptedModel{reply: "one two three four", err: fmt.Errorf("connection reset"), failAfter: 2}
		eng, _ := newTestEngine(model)

		events, err := eng.SubmitStream(ctx, SubmitRequest{SessionID: "u1", Message: "q", Provider: "openai"})
		require.NoError(t, err)

		out := collect(events)
		last := out[len(out)-1]
		assert.Equal(t, EventError, last.Type)
		assert.Contains(t, last.Error, "connection reset")

		// Chunks before the failure were delivered.
		chunks := 0
		for _, ev := range out {
			if ev.Type == EventChunk {
				chunks++
			}
		}
		assert.Equal(t, 2, chunks)

		state, err := eng.History("u1")
		require.NoError(t, err)
		assert.Empty(t, state.Messages)
	})

	t.Run("Canceled caller abandons the turn without persisting", func(t *testing.T) {
		model := &scriptedModel{reply: "one two three four five six"}
		eng, _ := newTestEngine(model)

		streamCtx, cancel := context.WithCancel(ctx)
		events, err := eng.SubmitStream(streamCtx, SubmitRequest{SessionID: "u1", Message: "q", Provider: "openai"})
		require.NoError(t, err)

		// Read the start event then walk away.
		<-events
		cancel()
		for range events {
		}

		state, err := eng.History("u1")
		require.NoError(t, err)
		assert.Empty(t, state.Messages)
	})
}

func TestConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{reply: "ok"}
	eng, _ := newTestEngine(model)

	const sessions = 8
	const turnsEach = 5

	var wg sync.WaitGroup
	for s := 0; s < sessions; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", s)
			for i := 0; i < turnsEach; i++ {
				_, err := eng.Submit(ctx, SubmitRequest{SessionID: id, Message: fmt.Sprintf("q%d", i), Provider: "openai"})
				assert.NoError(t, err)
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent submits deadlocked")
	}

	for s := 0; s < sessions; s++ {
		state, err := eng.History(fmt.Sprintf("session-%d", s))
		require.NoError(t, err)
		assert.Len(t, state.Messages, turnsEach*2)

		// Strict alternation in submission order.
		for i, msg := range state.Messages {
			if i%2 == 0 {
				assert.Equal(t, ai.RoleHuman, msg.Role)
			} else {
				assert.Equal(t, ai.RoleAssistant, msg.Role)
			}
		}
	}
}

func TestHistory(t *testing.T) {
	eng, _ := newTestEngine(&scriptedModel{reply: "ok"})

	t.Run("Unknown session", func(t *testing.T) {
		_, err := eng.History("ghost")
		assert.True(t, errors.IsCode(err, errors.ErrCodeSessionNotFound))
	})

	t.Run("Empty id maps to default", func(t *testing.T) {
		_, err := eng.Submit(context.Background(), SubmitRequest{Message: "q", Provider: "openai"})
		require.NoError(t, err)

		state, err := eng.History("")
		require.NoError(t, err)
		assert.Len(t, state.Messages, 2)
	})
}

func TestPromptTypes(t *testing.T) {
	eng, _ := newTestEngine(&scriptedModel{})
	types, def := eng.PromptTypes()

	assert.Equal(t, prompt.DefaultType, def)
	assert.Contains(t, types, "general")
	assert.Len(t, types, 4)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"  padded  ", "padded"},
		{"multi\nline\ntext", "multi line text"},
		{"tabs\tand  spaces", "tabs and spaces"},
		{"", ""},
		{"\n\n", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}
