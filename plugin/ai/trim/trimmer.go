// Package trim bounds conversation history to a token budget before it
// is sent to a provider.
package trim

import (
	"log/slog"

	"github.com/franksymon/Chatbot-api/plugin/ai"
)

// TokenCounter maps a message to an integer token cost.
type TokenCounter interface {
	Count(msg ai.Message) (int, error)
}

// Options controls a single trim invocation. It is passed per call and
// never stored. Keeping the most recent contiguous suffix ("last") is
// the only implemented trimming strategy, so Options carries no
// strategy selector.
type Options struct {
	// MaxTokens is the budget for the kept window.
	MaxTokens int
	// IncludeSystem force-includes a leading system message outside
	// the budget walk.
	IncludeSystem bool
	// StartOnHuman drops leading non-human messages from the kept
	// window so it opens on a human-authored message.
	StartOnHuman bool
}

// Trim returns a bounded suffix of messages that fits the token budget,
// walking from the most recent message backward. Messages are atomic:
// none is ever split. If token counting fails the full input is
// returned unchanged; trimming must never abort a turn.
func Trim(messages []ai.Message, counter TokenCounter, opts Options) []ai.Message {
	if len(messages) == 0 {
		return messages
	}
	if counter == nil {
		counter = EstimatingCounter{}
	}
	if opts.MaxTokens <= 0 {
		return failOpen(messages, nil)
	}

	// Walk backward accumulating cost until the next older message
	// would exceed the budget.
	used := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost, err := counter.Count(messages[i])
		if err != nil {
			return failOpen(messages, err)
		}
		if used+cost > opts.MaxTokens {
			break
		}
		used += cost
		start = i
	}

	kept := messages[start:]

	if opts.StartOnHuman {
		kept = dropLeadingNonHuman(kept)
	}

	if opts.IncludeSystem && messages[0].Role == ai.RoleSystem && (start > 0 || len(kept) == 0 || kept[0].Role != ai.RoleSystem) {
		withSystem := make([]ai.Message, 0, len(kept)+1)
		withSystem = append(withSystem, messages[0])
		withSystem = append(withSystem, kept...)
		return withSystem
	}

	return kept
}

func dropLeadingNonHuman(messages []ai.Message) []ai.Message {
	for i, msg := range messages {
		if msg.Role == ai.RoleHuman {
			return messages[i:]
		}
	}
	return nil
}

func failOpen(messages []ai.Message, err error) []ai.Message {
	slog.Warn("trimming degraded to full history", "messages", len(messages), "error", err)
	return messages
}

// EstimatingCounter approximates token cost without a provider
// tokenizer. CJK characters count as ~2 tokens, ASCII as ~1 token per
// 4 characters.
type EstimatingCounter struct{}

// Count implements TokenCounter.
func (EstimatingCounter) Count(msg ai.Message) (int, error) {
	return EstimateTokens(msg.Content), nil
}

// EstimateTokens estimates the token count for a string.
func EstimateTokens(content string) int {
	if len(content) == 0 {
		return 0
	}

	wideCount := 0
	asciiCount := 0
	for _, r := range content {
		if r < 128 {
			asciiCount++
		} else {
			wideCount++
		}
	}

	tokens := wideCount*2 + asciiCount/4
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}
