// Package store persists chats, per-chat and global settings, and named
// LLM service records. The SQLite implementation backs the application;
// the in-memory one backs tests.
package store

import (
	"github.com/go-go-golems/babelduck/pkg/chat"
	"github.com/go-go-golems/babelduck/pkg/intelligence"
	"github.com/go-go-golems/babelduck/pkg/messages"
)

// ChatSummary is one row of the chat list.
type ChatSummary struct {
	ID    string
	Title string
}

// ChatStore is the chat-storage collaborator. Writes are applied in call
// order and never dropped; callers rely on that for the index-as-identity
// message model.
type ChatStore interface {
	chat.MessageStore

	CreateChat(title string, seed []messages.Message) (string, error)
	DeleteChat(chatID string) error
	RenameChat(chatID string, title string) error
	ListChats() ([]ChatSummary, error)
}

// SettingsStore resolves chat settings with the two-tier override and
// stores shared LLM service records.
type SettingsStore interface {
	chat.SettingsSource
	intelligence.ServiceSource

	SetLLMService(record intelligence.ServiceRecord) error
	DeleteLLMService(id string) error
}

// Store is the full persistence surface.
type Store interface {
	ChatStore
	SettingsStore
}
