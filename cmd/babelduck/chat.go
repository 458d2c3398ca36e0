package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/babelduck/pkg/chat"
	"github.com/go-go-golems/babelduck/pkg/diff"
	"github.com/go-go-golems/babelduck/pkg/events"
	"github.com/go-go-golems/babelduck/pkg/intelligence"
	"github.com/go-go-golems/babelduck/pkg/messages"
	"github.com/go-go-golems/babelduck/pkg/store"
)

const chatEventsTopic = "chat-events"

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [chat-id]",
		Short: "Open an interactive chat session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.NewSQLiteStore(viper.GetString("db"))
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			chatID := ""
			if len(args) > 0 {
				chatID = args[0]
			}
			return runChatSession(cmd.Context(), s, chatID)
		},
	}

	cmd.Flags().String("token-endpoint", "", "Free-trial token endpoint URL")
	cmd.Flags().Int("token-budget", 0, "Max prompt tokens per completion, oldest turns dropped first (0 = unlimited)")
	_ = viper.BindPFlag("trial.token_endpoint", cmd.Flags().Lookup("token-endpoint"))
	_ = viper.BindPFlag("chat.token_budget", cmd.Flags().Lookup("token-budget"))

	return cmd
}

func runChatSession(ctx context.Context, s store.Store, chatID string) error {
	if chatID == "" {
		var err error
		chatID, err = s.CreateChat("", []messages.Message{
			messages.NewSystemMessage("You are a helpful assistant."),
		})
		if err != nil {
			return err
		}
		fmt.Printf("started chat %s\n", chatID)
	}

	settings, err := s.ResolveChatSettings(chatID)
	if err != nil {
		return err
	}

	// Completion progress flows over the event bus; the REPL renders the
	// stream from a gochannel subscription rather than a direct callback.
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	streamed, err := pubSub.Subscribe(ctx, chatEventsTopic)
	if err != nil {
		return errors.Wrap(err, "could not subscribe to chat events")
	}
	go renderEvents(streamed)

	manager := events.NewPublisherManager()
	manager.SubscribePublisher(chatEventsTopic, pubSub)

	chatUUID, err := uuid.Parse(chatID)
	if err != nil {
		chatUUID = uuid.Nil
	}

	collab := intelligence.Collaborators{
		Services:    s,
		Tokens:      intelligence.NewHTTPTokenSource(viper.GetString("trial.token_endpoint")),
		Events:      manager,
		Metadata:    events.EventMetadata{ChatID: chatUUID},
		TokenBudget: viper.GetInt("chat.token_budget"),
	}
	intel, err := intelligence.FromSettingsRecord(&settings.Intelligence, collab)
	if err != nil {
		return err
	}

	session, err := newSession(s, intel, chatID, settings)
	if err != nil {
		return err
	}
	return session.repl(ctx)
}

// renderEvents prints streamed completion deltas as they are published and
// closes the line when the stream finishes or fails.
func renderEvents(msgs <-chan *message.Message) {
	for msg := range msgs {
		event, err := events.NewEventFromJson(msg.Payload)
		msg.Ack()
		if err != nil {
			continue
		}
		switch event.Type {
		case events.EventTypePartial:
			if partial, ok := event.ToPartialCompletion(); ok {
				fmt.Print(partial.Delta)
			}
		case events.EventTypeFinal, events.EventTypeInterrupt:
			fmt.Println()
		case events.EventTypeError:
			fmt.Println()
			fmt.Fprintf(os.Stderr, "stream error: %s\n", event.Error)
		}
	}
}

// session ties one chat's stack and one input instance per level to the
// terminal. Entering a follow-up discussion swaps in a fresh input; its
// parent's input (and any in-flight call it has) stays untouched.
type session struct {
	store  store.Store
	intel  intelligence.ChatIntelligence
	stack  *chat.Stack
	inputs []*chat.Input
}

func newSession(s store.Store, intel intelligence.ChatIntelligence, chatID string, settings *chat.Settings) (*session, error) {
	stack := chat.NewStack(s)
	if err := stack.SwitchChat(chatID); err != nil {
		return nil, err
	}
	stack.OnMessageAdded(chat.CompletionCallback(intel, nil))

	ret := &session{store: s, intel: intel, stack: stack}
	ret.pushInput(settings)
	return ret, nil
}

func (s *session) pushInput(settings *chat.Settings) {
	chatID := s.stack.ChatID()
	input := chat.NewInput(s.stack, s.intel, chat.DisplayedHandlers(settings),
		chat.WithHandlerAddedHook(func(handler chat.InputHandler) {
			if err := s.store.AppendChatHandlers(chatID, handler); err != nil {
				fmt.Fprintf(os.Stderr, "could not save handler: %v\n", err)
			}
		}))
	s.inputs = append(s.inputs, input)
}

func (s *session) input() *chat.Input {
	return s.inputs[len(s.inputs)-1]
}

func (s *session) repl(ctx context.Context) error {
	settings, err := s.store.ResolveChatSettings(s.stack.ChatID())
	if err != nil {
		return err
	}

	s.printLevel()
	fmt.Println(`type a message and press enter to send; /help lists commands`)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "/") {
			quit, err := s.handleCommand(ctx, line, settings)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		s.input().SetDraft(line)
		if err := s.input().Send(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (s *session) handleCommand(ctx context.Context, line string, settings *chat.Settings) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/q":
		return true, nil

	case "/help":
		fmt.Println(`/revise <n>  run input handler n on the draft (see /handlers)
/draft <text>  set the draft without sending
/send!       send the draft without triggering a reply
/approve     accept the proposed revision
/reject      restore the pre-revision draft
/followup    discuss the proposal in a nested level
/back        leave the follow-up level
/handlers    list input handlers
/history     print the current level
/quit        exit`)
		return false, nil

	case "/handlers":
		for i, handler := range s.input().Handlers() {
			fmt.Printf("%d: %s — %s\n", i, handler.ImplType(), handler.Tooltip())
		}
		return false, nil

	case "/draft":
		s.input().SetDraft(strings.TrimSpace(strings.TrimPrefix(line, "/draft")))
		return false, nil

	case "/send!":
		return false, s.input().Send(ctx, chat.WithoutAssistantGeneration())

	case "/revise":
		if len(fields) < 2 {
			return false, errors.New("usage: /revise <handler-index>")
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, errors.Wrap(err, "bad handler index")
		}
		draft := s.input().Draft()
		if err := s.input().StartRevising(ctx, index); err != nil {
			return false, err
		}
		if s.input().State() != chat.StateWaitingApproval {
			fmt.Println("nothing to do")
			return false, nil
		}
		printDiff(draft, s.input().RevisedText())
		fmt.Println("/approve, /reject or /followup?")
		return false, nil

	case "/approve":
		s.input().Approve(s.input().RevisedText())
		fmt.Printf("draft: %s\n", s.input().Draft())
		return false, nil

	case "/reject":
		s.input().Reject()
		fmt.Printf("draft: %s\n", s.input().Draft())
		return false, nil

	case "/followup":
		// One input per level: only allocate when a level was actually
		// pushed, or /back would pop the wrong input.
		if s.input().StartFollowUpDiscussion() {
			s.pushInput(settings)
			s.printLevel()
		}
		return false, nil

	case "/back":
		if err := s.stack.Pop(); err != nil {
			return false, err
		}
		s.inputs = s.inputs[:len(s.inputs)-1]
		s.printLevel()
		return false, nil

	case "/history":
		s.printLevel()
		return false, nil

	default:
		return false, errors.Errorf("unknown command %s", fields[0])
	}
}

func (s *session) printLevel() {
	if !s.stack.IsTopLevel() {
		fmt.Printf("-- follow-up discussion (level %d) --\n", s.stack.Depth()-1)
	}
	for _, msg := range s.stack.CurrentLevel() {
		if !msg.DisplayToUser() {
			continue
		}
		if completion, ok := msg.(messages.CompletionMessage); ok {
			turn := completion.ToCompletionForm()
			fmt.Printf("%s: %s\n", turn.Role, turn.Content)
		}
	}
}

func printDiff(original, revised string) {
	for _, span := range diff.Chars(original, revised) {
		switch span.Op {
		case diff.OpInsert:
			fmt.Printf("\x1b[32m%s\x1b[0m", span.Text)
		case diff.OpDelete:
			fmt.Printf("\x1b[31m\x1b[9m%s\x1b[0m", span.Text)
		default:
			fmt.Print(span.Text)
		}
	}
	fmt.Println()
}
