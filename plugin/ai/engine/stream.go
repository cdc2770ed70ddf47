package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/franksymon/Chatbot-api/internal/errors"
	"github.com/franksymon/Chatbot-api/plugin/ai"
	"github.com/franksymon/Chatbot-api/plugin/ai/timeout"
)

// EventType identifies a streaming event.
type EventType string

const (
	// EventStart opens the stream.
	EventStart EventType = "start"
	// EventChunk carries the cumulative response text so far. Consumers
	// replay by replacing, not concatenating.
	EventChunk EventType = "chunk"
	// EventDone terminates a successful stream.
	EventDone EventType = "done"
	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// Event is one element of a streamed turn. Done and error are explicit
// terminal events; the channel closes after either.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// SubmitStream runs one turn with incremental delivery. Pre-flight
// failures (missing or unknown provider, empty message) are returned
// immediately; everything after that is reported on the event channel.
// The streamed content is accumulated and persisted as the complete
// assistant message, so stored history never holds a partial fragment.
// If ctx is canceled mid-stream the provider call is abandoned and the
// turn is not persisted.
func (e *Engine) SubmitStream(ctx context.Context, req SubmitRequest) (<-chan Event, error) {
	v, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	events := make(chan Event)
	go e.runStream(ctx, v, events)
	return events, nil
}

func (e *Engine) runStream(ctx context.Context, v *validated, events chan<- Event) {
	defer close(events)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Event{Type: EventStart}) {
		return
	}

	// The provider stream is consumed without holding the session turn
	// lock; the lock is taken only for the final persistence step.
	human := ai.HumanMessage(v.message)
	final := e.assemble(v, human)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		emit(Event{Type: EventError, Error: errors.ProviderFailed(v.provider, err).Error()})
		return
	}

	streamCtx, cancel := context.WithTimeout(ctx, timeout.StreamTimeout)
	defer cancel()
	contentChan, errChan := v.model.Stream(streamCtx, final)

	var accumulated strings.Builder
	delivered := true
	for delta := range contentChan {
		accumulated.WriteString(delta)
		if delivered && !emit(Event{Type: EventChunk, Content: accumulated.String()}) {
			// Caller is gone; drain the provider stream so its
			// goroutine can exit, then abandon the turn.
			delivered = false
		}
	}
	e.sem.Release(1)

	if err := <-errChan; err != nil {
		slog.Warn("streaming turn failed at provider",
			"session_id", v.sessionID,
			"provider", v.provider,
			"error", err)
		emit(Event{Type: EventError, Error: errors.ProviderFailed(v.provider, err).Error()})
		return
	}
	if !delivered || ctx.Err() != nil {
		slog.Debug("streaming turn abandoned", "session_id", v.sessionID)
		return
	}

	response := Normalize(accumulated.String())
	assistant := ai.AssistantMessage(response)

	lock := e.store.TurnLock(v.sessionID)
	lock.Lock()
	e.store.AppendTurn(v.sessionID, human, &assistant, v.provider, v.promptType)
	lock.Unlock()

	emit(Event{Type: EventDone})
}
