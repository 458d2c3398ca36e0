package chat

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/babelduck/pkg/messages"
)

func revisionIntelligence(reply string) *cannedIntelligence {
	return &cannedIntelligence{replies: []messages.Message{
		messages.NewTextMessage(messages.RoleAssistant, reply),
	}}
}

func newTestInput(t *testing.T, intel Intelligence) (*Input, *Stack) {
	t.Helper()
	stack := NewStack(newRecordingStore())
	require.NoError(t, stack.SwitchChat("chat-1"))
	input := NewInput(stack, intel, []InputHandler{
		NewGrammarCheckingHandler(),
		NewRespGenerationHandler(),
	})
	return input, stack
}

func TestStartRevisingGuards(t *testing.T) {
	intel := &cannedIntelligence{}
	input, _ := newTestInput(t, intel)

	// Revision handler on an empty draft: no transition, no backend call.
	require.NoError(t, input.StartRevising(context.Background(), 0))
	assert.Equal(t, StateNormal, input.State())
	assert.Equal(t, 0, intel.calls)

	// Generation handler on a non-empty draft: same.
	input.SetDraft("already typed something")
	require.NoError(t, input.StartRevising(context.Background(), 1))
	assert.Equal(t, StateNormal, input.State())
	assert.Equal(t, 0, intel.calls)
}

func TestStartRevisingProposesRevision(t *testing.T) {
	intel := revisionIntelligence(`{"revision": "I went to school yesterday."}`)
	input, _ := newTestInput(t, intel)

	input.SetDraft("I goed to school yesterday.")
	require.NoError(t, input.StartRevising(context.Background(), 0))

	assert.Equal(t, StateWaitingApproval, input.State())
	assert.Equal(t, "I went to school yesterday.", input.RevisedText())
	assert.Equal(t, 1, intel.calls)
}

func TestStartRevisingGeneratesOnEmptyDraft(t *testing.T) {
	intel := revisionIntelligence(`{"recommended": "Nice to meet you too!"}`)
	input, _ := newTestInput(t, intel)

	require.NoError(t, input.StartRevising(context.Background(), 1))

	assert.Equal(t, StateWaitingApproval, input.State())
	assert.Equal(t, "Nice to meet you too!", input.RevisedText())
}

func TestApproveReplacesDraftWithoutSending(t *testing.T) {
	intel := revisionIntelligence(`{"revision": "corrected text"}`)
	input, stack := newTestInput(t, intel)

	input.SetDraft("uncorected text")
	require.NoError(t, input.StartRevising(context.Background(), 0))
	input.Approve(input.RevisedText())

	assert.Equal(t, StateNormal, input.State())
	assert.Equal(t, "corrected text", input.Draft())
	assert.Empty(t, stack.CurrentLevel(), "approval must not auto-send")
}

func TestRejectRestoresOriginalDraft(t *testing.T) {
	intel := revisionIntelligence(`{"revision": "something else entirely"}`)
	input, _ := newTestInput(t, intel)

	input.SetDraft("my original words")
	require.NoError(t, input.StartRevising(context.Background(), 0))
	input.Reject()

	assert.Equal(t, StateNormal, input.State())
	assert.Equal(t, "my original words", input.Draft())
}

func TestBackendFailureRollsBackWithDraftIntact(t *testing.T) {
	intel := &cannedIntelligence{err: errors.New("connection refused")}
	input, _ := newTestInput(t, intel)

	input.SetDraft("precious draft")
	err := input.StartRevising(context.Background(), 0)

	assert.Error(t, err)
	assert.Equal(t, StateNormal, input.State())
	assert.Equal(t, "precious draft", input.Draft())
}

func TestStartFollowUpDiscussionPushesLevelAndClearsDraft(t *testing.T) {
	intel := revisionIntelligence(`{"revision": "I need a double room."}`)
	input, stack := newTestInput(t, intel)

	input.SetDraft("我需要一个双人房")
	require.NoError(t, input.StartRevising(context.Background(), 0))
	assert.True(t, input.StartFollowUpDiscussion())

	assert.Equal(t, StateNormal, input.State())
	assert.Empty(t, input.Draft())
	assert.Equal(t, 2, stack.Depth())
	assert.Len(t, stack.CurrentLevel(), 3)
}

func TestStartFollowUpDiscussionRequiresPendingRevision(t *testing.T) {
	intel := &cannedIntelligence{}
	input, stack := newTestInput(t, intel)

	// In Normal state there is nothing to discuss: no level may be pushed,
	// or a caller keeping one input per level would run ahead of the stack.
	input.SetDraft("still composing")
	assert.False(t, input.StartFollowUpDiscussion())

	assert.Equal(t, 1, stack.Depth())
	assert.Equal(t, StateNormal, input.State())
	assert.Equal(t, "still composing", input.Draft())
}

func TestSendEmptyDraftIsNoOp(t *testing.T) {
	intel := &cannedIntelligence{}
	input, stack := newTestInput(t, intel)

	require.NoError(t, input.Send(context.Background()))
	input.SetDraft("   \n\t ")
	require.NoError(t, input.Send(context.Background()))

	assert.Empty(t, stack.CurrentLevel())
	assert.Equal(t, 0, intel.calls)
}

func TestSendAppendsUserMessageAndTriggersCompletion(t *testing.T) {
	intel := revisionIntelligence("Hi! How can I help?")
	input, stack := newTestInput(t, intel)
	stack.OnMessageAdded(CompletionCallback(intel, nil))

	input.SetDraft("hello")
	require.NoError(t, input.Send(context.Background()))

	level := stack.CurrentLevel()
	require.Len(t, level, 2)
	assert.Equal(t, messages.RoleUser, level[0].Role())
	assert.Equal(t, messages.Turn{Role: "user", Content: "hello"}, messages.BuildCompletionHistory(level[:1])[0])
	assert.Equal(t, messages.RoleAssistant, level[1].Role())
	assert.Empty(t, input.Draft())
}

func TestSendWithoutAssistantGeneration(t *testing.T) {
	intel := &cannedIntelligence{}
	input, stack := newTestInput(t, intel)
	stack.OnMessageAdded(CompletionCallback(intel, nil))

	input.SetDraft("append only")
	require.NoError(t, input.Send(context.Background(), WithoutAssistantGeneration()))

	assert.Len(t, stack.CurrentLevel(), 1)
	assert.Equal(t, 0, intel.calls)
}

func TestAddingCustomHandlerLifecycle(t *testing.T) {
	intel := &cannedIntelligence{}
	var persisted []InputHandler
	stack := NewStack(newRecordingStore())
	require.NoError(t, stack.SwitchChat("chat-1"))
	input := NewInput(stack, intel, []InputHandler{NewGrammarCheckingHandler()},
		WithHandlerAddedHook(func(handler InputHandler) {
			persisted = append(persisted, handler)
		}))

	input.SetDraft("keep me")
	input.StartAddingCustomHandler()
	assert.Equal(t, StateAddingCustomInputH, input.State())

	input.CancelAddingCustomHandler()
	assert.Equal(t, StateNormal, input.State())
	assert.Equal(t, "keep me", input.Draft())
	assert.Len(t, input.Handlers(), 1)

	input.StartAddingCustomHandler()
	custom := NewCommonRevisionHandler("Make it more polite.", "Polite rewrite", "P")
	input.HandlerAdded(custom)

	assert.Equal(t, StateNormal, input.State())
	assert.Len(t, input.Handlers(), 2)
	require.Len(t, persisted, 1)
	assert.Equal(t, custom, persisted[0])
}

func TestTriggerShortcut(t *testing.T) {
	intel := revisionIntelligence(`{"revision": "fixed"}`)
	input, _ := newTestInput(t, intel)

	input.SetDraft("brokken text")
	claimed, err := input.TriggerShortcut(context.Background(), Shortcut{Key: "g", Ctrl: true})
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, StateWaitingApproval, input.State())

	claimed, err = input.TriggerShortcut(context.Background(), Shortcut{Key: "z", Ctrl: true})
	require.NoError(t, err)
	assert.False(t, claimed)
}
