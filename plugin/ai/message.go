// Package ai provides the chat model abstraction and provider gateway.
package ai

// Role identifies the author of a chat message.
type Role string

const (
	// RoleHuman marks messages authored by the caller.
	RoleHuman Role = "human"
	// RoleAssistant marks messages produced by a provider.
	RoleAssistant Role = "assistant"
	// RoleSystem marks instruction messages.
	RoleSystem Role = "system"
)

// Message is an immutable chat message. Position within a session is
// implicit in the containing sequence.
type Message struct {
	UID       string `json:"uid,omitempty"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedTs int64  `json:"created_ts,omitempty"`
}

// HumanMessage creates a human-authored message.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AssistantMessage creates a provider-authored message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SystemMessage creates an instruction message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}
