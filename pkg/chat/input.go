package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/babelduck/pkg/messages"
)

// InputState names the states of the input machine.
type InputState string

const (
	StateNormal             InputState = "normal"
	StateRevising           InputState = "revising"
	StateWaitingApproval    InputState = "waitingApproval"
	StateAddingCustomInputH InputState = "addingCustomInputHandler"
)

// Input drives composition of one draft message: typing, AI-assisted
// revision/generation with approve/reject, spawning follow-up discussions,
// and sending. The draft is owned exclusively by this instance.
//
// Guards serialize conflicting operations per instance: Normal→Revising is
// the only path into a backend call, and re-entry is blocked because the
// state is no longer Normal. Different instances (a follow-up level and its
// parent) may have concurrent in-flight calls.
type Input struct {
	mu sync.Mutex

	state    InputState
	draft    string
	role     messages.Role
	handlers []InputHandler

	stack *Stack
	intel Intelligence

	// revising / waitingApproval
	revisingIndex    int
	preRevisionDraft string
	revisedText      string
	instruction      string

	// invoked when a custom handler authored in AddingCustomInputHandler
	// is confirmed, so callers can persist it into chat settings
	onHandlerAdded func(handler InputHandler)
}

type InputOption func(*Input)

func WithHandlerAddedHook(hook func(handler InputHandler)) InputOption {
	return func(i *Input) {
		i.onHandlerAdded = hook
	}
}

func NewInput(stack *Stack, intel Intelligence, handlers []InputHandler, options ...InputOption) *Input {
	ret := &Input{
		state:    StateNormal,
		role:     messages.RoleUser,
		handlers: handlers,
		stack:    stack,
		intel:    intel,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (i *Input) State() InputState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Input) Draft() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.draft
}

// SetDraft replaces the draft text. Ignored outside Normal; while a
// revision is in flight or awaiting approval the draft is frozen.
func (i *Input) SetDraft(content string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateNormal {
		return
	}
	i.draft = content
}

func (i *Input) Handlers() []InputHandler {
	i.mu.Lock()
	defer i.mu.Unlock()
	ret := make([]InputHandler, len(i.handlers))
	copy(ret, i.handlers)
	return ret
}

// RevisingIndex reports which handler is in flight, or -1.
func (i *Input) RevisingIndex() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateRevising {
		return -1
	}
	return i.revisingIndex
}

// RevisedText returns the proposed text while awaiting approval.
func (i *Input) RevisedText() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.revisedText
}

// StartRevising fires the handler at handlerIndex. Guard violations are
// no-ops, not errors: a Generation handler needs an empty draft, a Revision
// handler a non-empty one, and the machine must be in Normal. On success the
// machine suspends in Revising until the backend call resolves, then moves
// to WaitingApproval with the proposed text. A backend failure rolls back to
// Normal with the draft intact and returns the error.
func (i *Input) StartRevising(ctx context.Context, handlerIndex int) error {
	i.mu.Lock()
	if i.state != StateNormal || handlerIndex < 0 || handlerIndex >= len(i.handlers) {
		i.mu.Unlock()
		return nil
	}
	handler := i.handlers[handlerIndex]
	empty := strings.TrimSpace(i.draft) == ""
	if handler.Kind() == KindGeneration && !empty {
		i.mu.Unlock()
		return nil
	}
	if handler.Kind() == KindRevision && empty {
		i.mu.Unlock()
		return nil
	}

	i.state = StateRevising
	i.revisingIndex = handlerIndex
	i.preRevisionDraft = i.draft
	draft := i.draft
	history := i.stack.CurrentLevel()
	i.mu.Unlock()

	var result string
	var err error
	if empty {
		result, err = GenerateMessage(ctx, i.intel, handler.Instruction(), history)
	} else {
		result, err = ReviseMessage(ctx, i.intel, draft, handler.Instruction(), history)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Str("handler", handler.ImplType()).Msg("revision call failed")
		i.state = StateNormal
		i.draft = i.preRevisionDraft
		return err
	}
	i.state = StateWaitingApproval
	i.revisedText = result
	i.instruction = handler.Instruction()
	return nil
}

// Approve accepts the proposed text (possibly edited by the user in the
// review view) as the new draft. Approval does not auto-send.
func (i *Input) Approve(finalText string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateWaitingApproval {
		return
	}
	i.state = StateNormal
	i.draft = finalText
	i.revisedText = ""
}

// Reject discards the proposal and restores the exact pre-revision draft.
func (i *Input) Reject() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateWaitingApproval {
		return
	}
	i.state = StateNormal
	i.draft = i.preRevisionDraft
	i.revisedText = ""
}

// StartFollowUpDiscussion opens a nested discussion level seeded from the
// pending revision and resets the input to an empty draft. It reports
// whether a level was actually pushed; outside WaitingApproval there is no
// pending revision to discuss and the call is a no-op, so callers tracking
// one input per level must not allocate for it.
func (i *Input) StartFollowUpDiscussion() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateWaitingApproval {
		return false
	}
	i.stack.StartFollowUpDiscussion(i.instruction, i.preRevisionDraft, i.revisedText)
	i.state = StateNormal
	i.draft = ""
	i.revisedText = ""
	return true
}

// StartAddingCustomHandler enters the transient handler-authoring state.
func (i *Input) StartAddingCustomHandler() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateNormal {
		return
	}
	i.state = StateAddingCustomInputH
}

// CancelAddingCustomHandler returns to Normal with the draft untouched.
func (i *Input) CancelAddingCustomHandler() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateAddingCustomInputH {
		return
	}
	i.state = StateNormal
}

// HandlerAdded confirms the authored handler, appends it to the handler
// list and returns to Normal. The hook given at construction persists it.
func (i *Input) HandlerAdded(handler InputHandler) {
	i.mu.Lock()
	if i.state != StateAddingCustomInputH {
		i.mu.Unlock()
		return
	}
	i.handlers = append(i.handlers, handler)
	i.state = StateNormal
	hook := i.onHandlerAdded
	i.mu.Unlock()

	if hook != nil {
		hook(handler)
	}
}

// Send appends the draft as a user message and clears it. An empty or
// whitespace-only draft is a no-op: nothing is appended and the backend is
// never invoked. Options pass through to the message-added callback chain;
// WithoutAssistantGeneration sends append-only (Ctrl+Enter).
func (i *Input) Send(ctx context.Context, options ...AddedOption) error {
	i.mu.Lock()
	if i.state != StateNormal || strings.TrimSpace(i.draft) == "" {
		i.mu.Unlock()
		return nil
	}
	content := i.draft
	role := i.role
	i.draft = ""
	i.mu.Unlock()

	return i.stack.AddMessage(ctx, messages.NewTextMessage(role, content), options...)
}

// TriggerShortcut fires the first handler whose shortcut matches the
// pressed key. Returns whether a handler claimed the keystroke.
func (i *Input) TriggerShortcut(ctx context.Context, pressed Shortcut) (bool, error) {
	i.mu.Lock()
	match := -1
	for idx, handler := range i.handlers {
		provider, ok := handler.(ShortcutProvider)
		if !ok {
			continue
		}
		if provider.Shortcut() == pressed {
			match = idx
			break
		}
	}
	i.mu.Unlock()

	if match < 0 {
		return false, nil
	}
	return true, i.StartRevising(ctx, match)
}
