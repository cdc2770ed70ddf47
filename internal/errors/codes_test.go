package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatError(t *testing.T) {
	t.Run("Without cause", func(t *testing.T) {
		err := MissingProvider()
		assert.Equal(t, "[MISSING_PROVIDER] provider not specified", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("With cause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := ProviderFailed("openai", cause)
		assert.Contains(t, err.Error(), "PROVIDER_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("Unsupported provider carries tag", func(t *testing.T) {
		err := UnsupportedProvider("mistral")
		assert.Contains(t, err.Message, "mistral")
	})
}

func TestIsCode(t *testing.T) {
	err := SessionNotFound("u1")
	require.True(t, IsCode(err, ErrCodeSessionNotFound))
	assert.False(t, IsCode(err, ErrCodeProviderError))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrCodeSessionNotFound))
}

func TestGetCodeFromError(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidArgument, GetCodeFromError(InvalidArgument("bad"), ErrCodeProviderError))
	assert.Equal(t, ErrCodeProviderError, GetCodeFromError(fmt.Errorf("plain"), ErrCodeProviderError))
}
