package messages

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

const (
	TypeText                = "text"
	TypeSystemMessage       = "systemMessage"
	TypeIdentifiedText      = "identifiedText"
	TypeRecommendedResponse = "recommendedResponse"
)

// TextMessage is the workhorse variant: a mutable piece of text with a role.
// By default it is rendered to the user and included in chat completion;
// both flags can be overridden to inject hidden context turns (the follow-up
// discussion seed relies on this).
type TextMessage struct {
	role                     Role
	content                  string
	displayToUser            bool
	includedInChatCompletion bool
}

type TextOption func(*TextMessage)

func WithDisplayToUser(display bool) TextOption {
	return func(m *TextMessage) {
		m.displayToUser = display
	}
}

func WithIncludedInChatCompletion(included bool) TextOption {
	return func(m *TextMessage) {
		m.includedInChatCompletion = included
	}
}

func NewTextMessage(role Role, content string, options ...TextOption) *TextMessage {
	ret := &TextMessage{
		role:                     role,
		content:                  content,
		displayToUser:            true,
		includedInChatCompletion: true,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (m *TextMessage) Type() string                   { return TypeText }
func (m *TextMessage) Role() Role                     { return m.role }
func (m *TextMessage) Content() string                { return m.content }
func (m *TextMessage) DisplayToUser() bool            { return m.displayToUser }
func (m *TextMessage) IncludedInChatCompletion() bool { return m.includedInChatCompletion }

func (m *TextMessage) IsEmpty() bool {
	return strings.TrimSpace(m.content) == ""
}

// UpdateContent returns a copy carrying the new content, preserving the
// display and completion flags.
func (m *TextMessage) UpdateContent(content string) *TextMessage {
	ret := *m
	ret.content = content
	return &ret
}

func (m *TextMessage) ToCompletionForm() Turn {
	return Turn{Role: string(m.role), Content: m.content}
}

type textMessagePayload struct {
	Type                     string `json:"type"`
	Role                     Role   `json:"role"`
	Content                  string `json:"content"`
	DisplayToUser            bool   `json:"displayToUser"`
	IncludedInChatCompletion bool   `json:"includedInChatCompletion"`
}

func (m *TextMessage) Serialize() (string, error) {
	b, err := json.Marshal(textMessagePayload{
		Type:                     TypeText,
		Role:                     m.role,
		Content:                  m.content,
		DisplayToUser:            m.displayToUser,
		IncludedInChatCompletion: m.includedInChatCompletion,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize text message")
	}
	return string(b), nil
}

func deserializeTextMessage(payload []byte) (Message, error) {
	var p textMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "could not deserialize text message")
	}
	return NewTextMessage(p.Role, p.Content,
		WithDisplayToUser(p.DisplayToUser),
		WithIncludedInChatCompletion(p.IncludedInChatCompletion),
	), nil
}

var (
	_ Message           = (*TextMessage)(nil)
	_ CompletionMessage = (*TextMessage)(nil)
)

// SystemMessage seeds a chat with its system prompt. Role is fixed.
type SystemMessage struct {
	TextMessage
}

func NewSystemMessage(content string) *SystemMessage {
	return &SystemMessage{
		TextMessage: *NewTextMessage(RoleSystem, content, WithDisplayToUser(false)),
	}
}

func (m *SystemMessage) Type() string { return TypeSystemMessage }

func (m *SystemMessage) Serialize() (string, error) {
	b, err := json.Marshal(map[string]string{
		"type":    TypeSystemMessage,
		"content": m.content,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize system message")
	}
	return string(b), nil
}

func deserializeSystemMessage(payload []byte) (Message, error) {
	var p struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "could not deserialize system message")
	}
	return NewSystemMessage(p.Content), nil
}

var _ CompletionMessage = (*SystemMessage)(nil)

// IdentifiedTextMessage is a TextMessage with a stable application-defined
// ID, so a backend can recognize a specific message regardless of its
// content. The tutorial intelligence drives its script off these IDs.
type IdentifiedTextMessage struct {
	TextMessage
	ID string
}

func NewIdentifiedTextMessage(id string, role Role, content string, options ...TextOption) *IdentifiedTextMessage {
	return &IdentifiedTextMessage{
		TextMessage: *NewTextMessage(role, content, options...),
		ID:          id,
	}
}

func (m *IdentifiedTextMessage) Type() string { return TypeIdentifiedText }

func (m *IdentifiedTextMessage) Serialize() (string, error) {
	b, err := json.Marshal(struct {
		textMessagePayload
		ID string `json:"id"`
	}{
		textMessagePayload: textMessagePayload{
			Type:                     TypeIdentifiedText,
			Role:                     m.role,
			Content:                  m.content,
			DisplayToUser:            m.displayToUser,
			IncludedInChatCompletion: m.includedInChatCompletion,
		},
		ID: m.ID,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize identified text message")
	}
	return string(b), nil
}

func deserializeIdentifiedTextMessage(payload []byte) (Message, error) {
	var p struct {
		textMessagePayload
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "could not deserialize identified text message")
	}
	return NewIdentifiedTextMessage(p.ID, p.Role, p.Content,
		WithDisplayToUser(p.DisplayToUser),
		WithIncludedInChatCompletion(p.IncludedInChatCompletion),
	), nil
}

var _ CompletionMessage = (*IdentifiedTextMessage)(nil)

// RecommendedRespMessage shows an AI-suggested response to the user inside a
// follow-up discussion. It is rendered but never included in completion; the
// hidden assistant message that precedes it carries the same text for the
// backend's benefit.
type RecommendedRespMessage struct {
	TextMessage
}

func NewRecommendedRespMessage(role Role, content string) *RecommendedRespMessage {
	return &RecommendedRespMessage{
		TextMessage: *NewTextMessage(role, content, WithIncludedInChatCompletion(false)),
	}
}

func (m *RecommendedRespMessage) Type() string { return TypeRecommendedResponse }

func (m *RecommendedRespMessage) Serialize() (string, error) {
	b, err := json.Marshal(map[string]string{
		"type":    TypeRecommendedResponse,
		"role":    string(m.role),
		"content": m.content,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize recommended response message")
	}
	return string(b), nil
}

func deserializeRecommendedRespMessage(payload []byte) (Message, error) {
	var p struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "could not deserialize recommended response message")
	}
	return NewRecommendedRespMessage(p.Role, p.Content), nil
}

func init() {
	defaultRegistry.MustRegister(TypeText, deserializeTextMessage)
	defaultRegistry.MustRegister(TypeSystemMessage, deserializeSystemMessage)
	defaultRegistry.MustRegister(TypeIdentifiedText, deserializeIdentifiedTextMessage)
	defaultRegistry.MustRegister(TypeRecommendedResponse, deserializeRecommendedRespMessage)
}
