package messages

// Package messages implements the polymorphic chat message model. A message
// knows its role, whether it is rendered to the user, and whether it is part
// of the payload sent to a chat intelligence backend. Every variant
// serializes to a tagged JSON string and is reconstructed through the
// Registry, so chats can be persisted and reloaded without the storage layer
// knowing anything about individual variants.

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTutorial is a pseudo-role for scripted messages that never reach an
	// LLM backend.
	RoleTutorial Role = "tutorial"
)

// Message is the contract every chat message variant satisfies.
type Message interface {
	Type() string
	Role() Role
	DisplayToUser() bool
	IncludedInChatCompletion() bool
	IsEmpty() bool
	Serialize() (string, error)
}

// Turn is the provider-neutral {role, content} form a completion-eligible
// message reduces to when building a backend request.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionMessage is the capability of reducing to a Turn. Not every
// variant has it; callers filter on IncludedInChatCompletion first.
type CompletionMessage interface {
	Message
	ToCompletionForm() Turn
}

// BuildCompletionHistory filters a level's message list down to the turns
// sent to a backend, preserving chronological order. Messages that are
// flagged as eligible but lack the capability are skipped rather than
// panicking, matching the original client behavior.
func BuildCompletionHistory(msgs []Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.IncludedInChatCompletion() {
			continue
		}
		cm, ok := msg.(CompletionMessage)
		if !ok {
			continue
		}
		turns = append(turns, cm.ToCompletionForm())
	}
	return turns
}

// FilterCompletionEligible returns the subset of msgs that participate in
// chat completion, in order.
func FilterCompletionEligible(msgs []Message) []Message {
	ret := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.IncludedInChatCompletion() {
			ret = append(ret, msg)
		}
	}
	return ret
}
