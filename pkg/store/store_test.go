package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/babelduck/pkg/chat"
	"github.com/go-go-golems/babelduck/pkg/intelligence"
	"github.com/go-go-golems/babelduck/pkg/messages"
)

func withStores(t *testing.T, run func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		run(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "babelduck.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		run(t, s)
	})
}

func TestChatLifecycle(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		seed := []messages.Message{
			messages.NewSystemMessage("You are a helpful assistant. The user may ask you to help with language practice."),
		}
		chatID, err := s.CreateChat("New Chat", seed)
		require.NoError(t, err)

		chats, err := s.ListChats()
		require.NoError(t, err)
		require.Len(t, chats, 1)
		assert.Equal(t, "New Chat", chats[0].Title)

		require.NoError(t, s.RenameChat(chatID, "Hotel booking practice"))
		chats, err = s.ListChats()
		require.NoError(t, err)
		assert.Equal(t, "Hotel booking practice", chats[0].Title)

		loaded, err := s.LoadMessages(chatID)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, messages.RoleSystem, loaded[0].Role())

		require.NoError(t, s.DeleteChat(chatID))
		chats, err = s.ListChats()
		require.NoError(t, err)
		assert.Empty(t, chats)
	})
}

func TestMessagesRoundTripInOrder(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		chatID, err := s.CreateChat("ordering", nil)
		require.NoError(t, err)

		require.NoError(t, s.AppendMessages(chatID,
			messages.NewTextMessage(messages.RoleUser, "first"),
			messages.NewTextMessage(messages.RoleAssistant, "second"),
		))
		require.NoError(t, s.AppendMessages(chatID,
			messages.NewTextMessage(messages.RoleUser, "third"),
		))

		loaded, err := s.LoadMessages(chatID)
		require.NoError(t, err)
		require.Len(t, loaded, 3)

		turns := messages.BuildCompletionHistory(loaded)
		assert.Equal(t, "first", turns[0].Content)
		assert.Equal(t, "second", turns[1].Content)
		assert.Equal(t, "third", turns[2].Content)
	})
}

func TestReplaceMessageAt(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		chatID, err := s.CreateChat("editing", nil)
		require.NoError(t, err)
		require.NoError(t, s.AppendMessages(chatID,
			messages.NewTextMessage(messages.RoleUser, "one"),
			messages.NewTextMessage(messages.RoleAssistant, "two"),
		))

		require.NoError(t, s.ReplaceMessageAt(chatID, 1, messages.NewTextMessage(messages.RoleAssistant, "edited")))

		loaded, err := s.LoadMessages(chatID)
		require.NoError(t, err)
		turns := messages.BuildCompletionHistory(loaded)
		assert.Equal(t, "edited", turns[1].Content)

		assert.Error(t, s.ReplaceMessageAt(chatID, 5, messages.NewTextMessage(messages.RoleUser, "x")))
	})
}

func TestLoadFailsOnUnknownMessageType(t *testing.T) {
	s := NewMemoryStore()
	chatID, err := s.CreateChat("corrupted", nil)
	require.NoError(t, err)

	s.mu.Lock()
	s.messages[chatID] = append(s.messages[chatID], `{"type":"fromTheFuture","content":"?"}`)
	s.mu.Unlock()

	_, err = s.LoadMessages(chatID)
	require.Error(t, err)

	var unknownErr *messages.UnknownMessageTypeError
	assert.ErrorAs(t, err, &unknownErr)
}

func TestGlobalSettingsSeededFromDefaults(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		settings, err := s.GlobalSettings()
		require.NoError(t, err)

		assert.True(t, settings.UsingGlobalSettings)
		assert.Equal(t, intelligence.IDFreeTrial, settings.Intelligence.ID)
		assert.Len(t, settings.InputHandlers, 3)
	})
}

func TestTwoTierSettingsResolution(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		chatID, err := s.CreateChat("configured", nil)
		require.NoError(t, err)

		// Unconfigured chats follow the globals.
		resolved, err := s.ResolveChatSettings(chatID)
		require.NoError(t, err)
		assert.True(t, resolved.UsingGlobalSettings)

		local := resolved.Clone()
		local.Intelligence.ID = intelligence.IDBabelDuck
		local.Intelligence.Type = intelligence.IDBabelDuck
		require.NoError(t, s.SetChatSettings(chatID, local))

		resolved, err = s.ResolveChatSettings(chatID)
		require.NoError(t, err)
		assert.False(t, resolved.UsingGlobalSettings)
		assert.Equal(t, intelligence.IDBabelDuck, resolved.Intelligence.ID)

		// The globals are untouched, and other chats still see them.
		global, err := s.GlobalSettings()
		require.NoError(t, err)
		assert.Equal(t, intelligence.IDFreeTrial, global.Intelligence.ID)

		other, err := s.CreateChat("other", nil)
		require.NoError(t, err)
		resolved, err = s.ResolveChatSettings(other)
		require.NoError(t, err)
		assert.True(t, resolved.UsingGlobalSettings)
	})
}

func TestSwitchBetweenGlobalAndLocalSettings(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		chatID, err := s.CreateChat("switcher", nil)
		require.NoError(t, err)

		// Forking without a prior local payload copies the globals.
		require.NoError(t, s.SwitchToLocal(chatID))
		resolved, err := s.ResolveChatSettings(chatID)
		require.NoError(t, err)
		assert.False(t, resolved.UsingGlobalSettings)
		assert.Equal(t, intelligence.IDFreeTrial, resolved.Intelligence.ID)

		local := resolved.Clone()
		local.Intelligence.ID = intelligence.IDBabelDuck
		local.Intelligence.Type = intelligence.IDBabelDuck
		require.NoError(t, s.SetChatSettings(chatID, local))

		require.NoError(t, s.SwitchToGlobal(chatID))
		resolved, err = s.ResolveChatSettings(chatID)
		require.NoError(t, err)
		assert.True(t, resolved.UsingGlobalSettings)
		assert.Equal(t, intelligence.IDFreeTrial, resolved.Intelligence.ID)

		// Switching back restores the stored local settings.
		require.NoError(t, s.SwitchToLocal(chatID))
		resolved, err = s.ResolveChatSettings(chatID)
		require.NoError(t, err)
		assert.False(t, resolved.UsingGlobalSettings)
		assert.Equal(t, intelligence.IDBabelDuck, resolved.Intelligence.ID)
	})
}

func TestDefaultChatTitlesCount(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		first, err := s.CreateChat("", nil)
		require.NoError(t, err)
		_, err = s.CreateChat("", nil)
		require.NoError(t, err)

		chats, err := s.ListChats()
		require.NoError(t, err)
		require.Len(t, chats, 2)
		assert.Equal(t, "Chat 1", chats[0].Title)
		assert.Equal(t, "Chat 2", chats[1].Title)

		// Numbers are never reused, even after a deletion.
		require.NoError(t, s.DeleteChat(first))
		_, err = s.CreateChat("", nil)
		require.NoError(t, err)
		chats, err = s.ListChats()
		require.NoError(t, err)
		require.Len(t, chats, 2)
		assert.Equal(t, "Chat 3", chats[1].Title)
	})
}

func TestAppendChatHandlersForksGlobals(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		chatID, err := s.CreateChat("custom handlers", nil)
		require.NoError(t, err)

		custom := chat.NewCommonRevisionHandler("Make it rhyme.", "Rhyming rewrite", "R")
		require.NoError(t, s.AppendChatHandlers(chatID, custom))

		resolved, err := s.ResolveChatSettings(chatID)
		require.NoError(t, err)
		assert.False(t, resolved.UsingGlobalSettings)
		require.Len(t, resolved.InputHandlers, 4)
		assert.Equal(t, custom, resolved.InputHandlers[3].Handler)

		global, err := s.GlobalSettings()
		require.NoError(t, err)
		assert.Len(t, global.InputHandlers, 3, "globals must not gain the chat-local handler")
	})
}

func TestLLMServiceRecords(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		temperature := float32(0.7)
		record := intelligence.ServiceRecord{
			ID: "my-ollama",
			ServiceSettings: intelligence.ServiceSettings{
				Name:        "My Ollama",
				BaseURL:     "http://localhost:11434/v1",
				APIKey:      "unused",
				Model:       "llama3",
				Temperature: &temperature,
			},
		}
		require.NoError(t, s.SetLLMService(record))

		loaded, ok, err := s.GetLLMService("my-ollama")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, record, *loaded)

		_, ok, err = s.GetLLMService("nope")
		require.NoError(t, err)
		assert.False(t, ok)

		list, err := s.ListLLMServices()
		require.NoError(t, err)
		require.Len(t, list, 1)

		require.NoError(t, s.DeleteLLMService("my-ollama"))
		list, err = s.ListLLMServices()
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
