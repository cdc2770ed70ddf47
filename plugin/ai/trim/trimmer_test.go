package trim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franksymon/Chatbot-api/plugin/ai"
)

// unitCounter charges one token per message.
type unitCounter struct{}

func (unitCounter) Count(_ ai.Message) (int, error) { return 1, nil }

// brokenCounter always fails.
type brokenCounter struct{}

func (brokenCounter) Count(_ ai.Message) (int, error) {
	return 0, fmt.Errorf("tokenizer unavailable")
}

func conversation(n int) []ai.Message {
	msgs := make([]ai.Message, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			msgs = append(msgs, ai.HumanMessage(fmt.Sprintf("question %d", i)))
		} else {
			msgs = append(msgs, ai.AssistantMessage(fmt.Sprintf("answer %d", i)))
		}
	}
	return msgs
}

func TestTrimLastStrategy(t *testing.T) {
	t.Run("Keeps the most recent suffix", func(t *testing.T) {
		msgs := conversation(10)
		kept := Trim(msgs, unitCounter{}, Options{MaxTokens: 4})

		require.Len(t, kept, 4)
		assert.Equal(t, msgs[6:], kept)
	})

	t.Run("Everything fits", func(t *testing.T) {
		msgs := conversation(4)
		kept := Trim(msgs, unitCounter{}, Options{MaxTokens: 100})
		assert.Equal(t, msgs, kept)
	})

	t.Run("Contiguous suffix, no reorder or duplicates", func(t *testing.T) {
		msgs := conversation(8)
		kept := Trim(msgs, unitCounter{}, Options{MaxTokens: 5})

		require.NotEmpty(t, kept)
		assert.Equal(t, msgs[len(msgs)-len(kept):], kept)
	})

	t.Run("Empty input", func(t *testing.T) {
		assert.Empty(t, Trim(nil, unitCounter{}, Options{MaxTokens: 10}))
	})
}

func TestTrimIncludeSystem(t *testing.T) {
	msgs := append([]ai.Message{ai.SystemMessage("instructions")}, conversation(10)...)

	t.Run("System forced back outside the budget", func(t *testing.T) {
		kept := Trim(msgs, unitCounter{}, Options{MaxTokens: 2, IncludeSystem: true})

		require.Len(t, kept, 3)
		assert.Equal(t, ai.RoleSystem, kept[0].Role)
		assert.Equal(t, msgs[len(msgs)-2:], kept[1:])
	})

	t.Run("No duplication when system already kept", func(t *testing.T) {
		kept := Trim(msgs, unitCounter{}, Options{MaxTokens: 100, IncludeSystem: true})

		systems := 0
		for _, m := range kept {
			if m.Role == ai.RoleSystem {
				systems++
			}
		}
		assert.Equal(t, 1, systems)
		assert.Equal(t, msgs, kept)
	})

	t.Run("Ignored when no leading system exists", func(t *testing.T) {
		plain := conversation(6)
		kept := Trim(plain, unitCounter{}, Options{MaxTokens: 2, IncludeSystem: true})
		require.Len(t, kept, 2)
		assert.NotEqual(t, ai.RoleSystem, kept[0].Role)
	})
}

func TestTrimStartOnHuman(t *testing.T) {
	msgs := conversation(10)

	t.Run("Window opens on a human message", func(t *testing.T) {
		// A budget of 3 keeps assistant/human/assistant; the leading
		// assistant must be dropped, shrinking the window below budget.
		kept := Trim(msgs, unitCounter{}, Options{MaxTokens: 3, StartOnHuman: true})

		require.Len(t, kept, 2)
		assert.Equal(t, ai.RoleHuman, kept[0].Role)
	})

	t.Run("Forced system precedes the human window", func(t *testing.T) {
		withSystem := append([]ai.Message{ai.SystemMessage("instructions")}, msgs...)
		kept := Trim(withSystem, unitCounter{}, Options{MaxTokens: 3, IncludeSystem: true, StartOnHuman: true})

		require.GreaterOrEqual(t, len(kept), 2)
		assert.Equal(t, ai.RoleSystem, kept[0].Role)
		assert.Equal(t, ai.RoleHuman, kept[1].Role)
	})
}

func TestTrimFailOpen(t *testing.T) {
	msgs := conversation(10)
	kept := Trim(msgs, brokenCounter{}, Options{MaxTokens: 2})
	assert.Equal(t, msgs, kept)
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input string
		min   int
		max   int
	}{
		{"", 0, 0},
		{"hi", 1, 1},
		{"hello world this is a longer sentence", 5, 15},
		{"你好世界", 8, 8},
	}
	for _, tt := range tests {
		got := EstimateTokens(tt.input)
		assert.GreaterOrEqual(t, got, tt.min, tt.input)
		assert.LessOrEqual(t, got, tt.max, tt.input)
	}
}
