package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// ChatModel is the opaque provider capability: one synchronous call and
// one incremental call. Implementations must not retry on failure;
// retry policy belongs to the deployer, not this layer.
type ChatModel interface {
	// Invoke performs a blocking chat completion.
	Invoke(ctx context.Context, messages []Message) (Message, error)

	// Stream performs an incremental chat completion. The content
	// channel carries partial-content deltas and is closed when the
	// stream ends; a mid-stream provider failure is delivered on the
	// error channel and terminates the sequence.
	Stream(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

// ModelConfig configures a chat model backed by an OpenAI-compatible API.
type ModelConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

type chatModel struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewChatModel creates a ChatModel over an OpenAI-compatible endpoint.
// Both OpenAI and Gemini (via Google's compatibility endpoint) are
// served by this implementation.
func NewChatModel(cfg ModelConfig) (ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &chatModel{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

func (m *chatModel) Invoke(ctx context.Context, messages []Message) (Message, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    convertMessages(messages),
		Temperature: m.temperature,
	})
	if err != nil {
		return Message{}, err
	}
	if len(resp.Choices) == 0 {
		return Message{}, fmt.Errorf("empty chat response")
	}
	return AssistantMessage(resp.Choices[0].Message.Content), nil
}

func (m *chatModel) Stream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	contentChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errChan)

		stream, err := m.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       m.model,
			Messages:    convertMessages(messages),
			Temperature: m.temperature,
			Stream:      true,
		})
		if err != nil {
			errChan <- err
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errChan <- err
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case contentChan <- delta:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return contentChan, errChan
}

// convertMessages maps internal messages to the wire format.
func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out[i] = openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		}
	}
	return out
}
