package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/babelduck/pkg/messages"
)

type recordingStore struct {
	loaded   map[string][]messages.Message
	appends  []messages.Message
	replaces map[int]messages.Message
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		loaded:   map[string][]messages.Message{},
		replaces: map[int]messages.Message{},
	}
}

func (s *recordingStore) LoadMessages(chatID string) ([]messages.Message, error) {
	return s.loaded[chatID], nil
}

func (s *recordingStore) AppendMessages(_ string, msgs ...messages.Message) error {
	s.appends = append(s.appends, msgs...)
	return nil
}

func (s *recordingStore) ReplaceMessageAt(_ string, index int, msg messages.Message) error {
	s.replaces[index] = msg
	return nil
}

type cannedIntelligence struct {
	replies []messages.Message
	err     error
	calls   int
}

func (c *cannedIntelligence) CompleteChat(_ context.Context, _ []messages.Message) ([]messages.Message, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.replies, nil
}

func TestStackSwitchChatLoadsSingleLevel(t *testing.T) {
	store := newRecordingStore()
	store.loaded["chat-1"] = []messages.Message{
		messages.NewSystemMessage("You are a helpful assistant."),
		messages.NewTextMessage(messages.RoleUser, "hi"),
	}

	stack := NewStack(store)
	require.NoError(t, stack.SwitchChat("chat-1"))

	assert.Equal(t, 1, stack.Depth())
	assert.True(t, stack.IsTopLevel())
	assert.Len(t, stack.CurrentLevel(), 2)
}

func TestStackAddMessagePersistsOnlyAtTopLevel(t *testing.T) {
	store := newRecordingStore()
	stack := NewStack(store)
	require.NoError(t, stack.SwitchChat("chat-1"))

	msg := messages.NewTextMessage(messages.RoleUser, "hello")
	require.NoError(t, stack.AddMessage(context.Background(), msg))
	assert.Len(t, store.appends, 1)

	stack.Push([]messages.Message{messages.NewTextMessage(messages.RoleUser, "seed")})
	require.NoError(t, stack.AddMessage(context.Background(), messages.NewTextMessage(messages.RoleUser, "nested")))
	assert.Len(t, store.appends, 1, "follow-up level writes must not persist")
}

func TestStackUpdateMessagePersistsOnlyAtTopLevel(t *testing.T) {
	store := newRecordingStore()
	store.loaded["chat-1"] = []messages.Message{
		messages.NewSystemMessage("seed"),
		messages.NewTextMessage(messages.RoleUser, "one"),
		messages.NewTextMessage(messages.RoleAssistant, "two"),
	}
	stack := NewStack(store)
	require.NoError(t, stack.SwitchChat("chat-1"))

	updated := messages.NewTextMessage(messages.RoleAssistant, "edited")
	require.NoError(t, stack.UpdateMessage(2, updated))
	require.Contains(t, store.replaces, 2)

	stack.Push([]messages.Message{
		messages.NewTextMessage(messages.RoleUser, "a"),
		messages.NewTextMessage(messages.RoleAssistant, "b"),
		messages.NewTextMessage(messages.RoleAssistant, "c"),
	})
	require.NoError(t, stack.UpdateMessage(2, messages.NewTextMessage(messages.RoleAssistant, "nested-edit")))
	assert.Len(t, store.replaces, 1, "follow-up level updates must not persist")
}

func TestStackUpdateMessageOutOfRange(t *testing.T) {
	stack := NewStack(newRecordingStore())
	require.NoError(t, stack.SwitchChat("chat-1"))

	err := stack.UpdateMessage(0, messages.NewTextMessage(messages.RoleUser, "x"))
	assert.Error(t, err)
}

func TestStackPopRestoresPriorLevelWithoutPersistence(t *testing.T) {
	store := newRecordingStore()
	stack := NewStack(store)
	require.NoError(t, stack.SwitchChat("chat-1"))
	require.NoError(t, stack.AddMessage(context.Background(), messages.NewTextMessage(messages.RoleUser, "hello")))

	before := stack.CurrentLevel()
	persistedBefore := len(store.appends)

	stack.Push([]messages.Message{messages.NewTextMessage(messages.RoleUser, "ephemeral")})
	require.NoError(t, stack.AddMessage(context.Background(), messages.NewTextMessage(messages.RoleAssistant, "scratch")))
	require.NoError(t, stack.Pop())

	assert.True(t, stack.IsTopLevel())
	assert.Equal(t, before, stack.CurrentLevel())
	assert.Equal(t, persistedBefore, len(store.appends), "popped level must not have persisted anything")
}

func TestStackPopAtTopLevelFails(t *testing.T) {
	stack := NewStack(newRecordingStore())
	require.NoError(t, stack.SwitchChat("chat-1"))
	assert.Error(t, stack.Pop())
}

func TestFollowUpSeedShape(t *testing.T) {
	history := []messages.Message{
		messages.NewSystemMessage("You are a helpful assistant."),
		messages.NewTextMessage(messages.RoleAssistant, "What kind of room do you need?"),
	}

	seed := BuildFollowUpSeed(history, "Translate it into English to express the same meaning.", "我需要一个双人房", "I need a double room")
	require.Len(t, seed, 3)

	assert.False(t, seed[0].DisplayToUser())
	assert.True(t, seed[0].IncludedInChatCompletion())
	assert.Equal(t, messages.RoleUser, seed[0].Role())

	assert.False(t, seed[1].DisplayToUser())
	assert.True(t, seed[1].IncludedInChatCompletion())
	assert.Equal(t, messages.RoleAssistant, seed[1].Role())

	assert.True(t, seed[2].DisplayToUser())
	assert.False(t, seed[2].IncludedInChatCompletion())
	assert.Equal(t, messages.RoleAssistant, seed[2].Role())

	prompt := messages.BuildCompletionHistory(seed[:1])[0].Content
	assert.Contains(t, prompt, "我需要一个双人房")
	assert.Contains(t, prompt, "What kind of room do you need?")
	assert.Contains(t, prompt, "Translate it into English")
}

func TestCompletionCallbackAppendsAssistantReply(t *testing.T) {
	store := newRecordingStore()
	stack := NewStack(store)
	require.NoError(t, stack.SwitchChat("chat-1"))

	intel := &cannedIntelligence{replies: []messages.Message{
		messages.NewTextMessage(messages.RoleAssistant, "Hi there!"),
	}}
	stack.OnMessageAdded(CompletionCallback(intel, nil))

	require.NoError(t, stack.AddMessage(context.Background(), messages.NewTextMessage(messages.RoleUser, "hello")))

	level := stack.CurrentLevel()
	require.Len(t, level, 2)
	assert.Equal(t, messages.RoleAssistant, level[1].Role())
	assert.Equal(t, 1, intel.calls)
	assert.Len(t, store.appends, 2, "both user and assistant messages persist at top level")
}

func TestCompletionCallbackSkipsNonUserMessages(t *testing.T) {
	stack := NewStack(newRecordingStore())
	require.NoError(t, stack.SwitchChat("chat-1"))

	intel := &cannedIntelligence{}
	stack.OnMessageAdded(CompletionCallback(intel, nil))

	require.NoError(t, stack.AddMessage(context.Background(), messages.NewTextMessage(messages.RoleAssistant, "unsolicited")))
	assert.Equal(t, 0, intel.calls)
}

func TestCompletionCallbackRespectsSuppression(t *testing.T) {
	stack := NewStack(newRecordingStore())
	require.NoError(t, stack.SwitchChat("chat-1"))

	intel := &cannedIntelligence{}
	stack.OnMessageAdded(CompletionCallback(intel, nil))

	require.NoError(t, stack.AddMessage(context.Background(),
		messages.NewTextMessage(messages.RoleUser, "appended silently"),
		WithoutAssistantGeneration()))
	assert.Equal(t, 0, intel.calls)
	assert.Len(t, stack.CurrentLevel(), 1)
}

func TestCompletionCallbackDrainsStreamingReply(t *testing.T) {
	store := newRecordingStore()
	stack := NewStack(store)
	require.NoError(t, stack.SwitchChat("chat-1"))

	deltas := make(chan messages.Delta, 3)
	deltas <- messages.Delta{Text: "Hel"}
	deltas <- messages.Delta{Text: "lo!"}
	close(deltas)
	streaming := messages.NewStreamingTextMessage(messages.RoleAssistant, deltas)

	intel := &cannedIntelligence{replies: []messages.Message{streaming}}
	var seen []string
	stack.OnMessageAdded(CompletionCallback(intel, func(delta, _ string) {
		seen = append(seen, delta)
	}))

	require.NoError(t, stack.AddMessage(context.Background(), messages.NewTextMessage(messages.RoleUser, "hi")))

	assert.Equal(t, []string{"Hel", "lo!"}, seen)
	assert.Equal(t, "Hello!", streaming.Content())
	require.Contains(t, store.replaces, 1, "drained stream content is persisted in place")
}
