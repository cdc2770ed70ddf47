package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franksymon/Chatbot-api/plugin/ai"
)

func TestLookup(t *testing.T) {
	m := NewManager()

	t.Run("Known tags", func(t *testing.T) {
		for _, tag := range []string{"general", "case_analysis", "documentation", "resources"} {
			spec := m.Lookup(tag)
			assert.Equal(t, tag, spec.Tag)
			assert.NotEmpty(t, spec.Instructions)
		}
	})

	t.Run("Unknown tag falls back to general", func(t *testing.T) {
		spec := m.Lookup("astrology")
		assert.Equal(t, DefaultType, spec.Tag)
	})

	t.Run("Empty tag falls back to general", func(t *testing.T) {
		assert.Equal(t, DefaultType, m.Lookup("").Tag)
	})
}

func TestTypes(t *testing.T) {
	types := NewManager().Types()

	require.Len(t, types, 4)
	assert.Contains(t, types, "general")
	assert.Contains(t, types, "case_analysis")
	assert.NotEmpty(t, types["general"])
}

func TestAssemble(t *testing.T) {
	m := NewManager()
	history := []ai.Message{
		ai.HumanMessage("hello"),
		ai.AssistantMessage("hi, how can I help?"),
		ai.HumanMessage("my patient reports insomnia"),
	}

	final := m.Assemble("case_analysis", history)

	require.Len(t, final, 4)
	assert.Equal(t, ai.RoleSystem, final[0].Role)
	assert.Equal(t, m.Lookup("case_analysis").Instructions, final[0].Content)
	assert.Equal(t, history, final[1:])
}

func TestAssembleEmptyHistory(t *testing.T) {
	final := NewManager().Assemble("general", nil)
	require.Len(t, final, 1)
	assert.Equal(t, ai.RoleSystem, final[0].Role)
}
