package chat

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/babelduck/pkg/messages"
)

// historyContext flattens the completion-eligible part of a level into the
// [START]role: content[END] transcript embedded in revision prompts.
func historyContext(history []messages.Message) string {
	turns := messages.BuildCompletionHistory(history)
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, fmt.Sprintf("[START]%s: %s[END]", turn.Role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

const followUpPromptTemplate = `This is an ongoing conversation:
"""
%s
"""
This is a message the user is about to send in conversation:
"""
%s
"""
If the message is empty, it potentially means the user needs a answer suggestion.

This is the user's instruction or question:
"""
%s
"""

Please provide a recommended response based on the user's instruction or question, considering the context of the conversation, and preserving the user's line breaks and formatting if any.

IMPORTANT: The suggested_answer you generate is intended for the user to respond to a previous conversation, not to reply to the user's current instruction or question.
`

// BuildFollowUpSeed synthesizes the 3-message seed of a follow-up
// discussion level:
//
//  1. a hidden user-role prompt embedding the conversation so far, the text
//     under revision and the instruction that produced it — sent to the
//     model on follow-up completions but never rendered;
//  2. a hidden assistant-role message holding the already-computed revised
//     text, so follow-up turns have it in context without re-deriving it;
//  3. a visible recommended-response message showing that same text to the
//     user, excluded from completion.
func BuildFollowUpSeed(history []messages.Message, userInstruction, messageToRevise, revisedText string) []messages.Message {
	prompt := fmt.Sprintf(followUpPromptTemplate, historyContext(history), messageToRevise, userInstruction)
	return []messages.Message{
		messages.NewTextMessage(messages.RoleUser, prompt,
			messages.WithDisplayToUser(false)),
		messages.NewTextMessage(messages.RoleAssistant, revisedText,
			messages.WithDisplayToUser(false)),
		messages.NewRecommendedRespMessage(messages.RoleAssistant, revisedText),
	}
}

// StartFollowUpDiscussion pushes a new discussion level seeded from a
// revision review.
func (s *Stack) StartFollowUpDiscussion(userInstruction, messageToRevise, revisedText string) {
	s.Push(BuildFollowUpSeed(s.CurrentLevel(), userInstruction, messageToRevise, revisedText))
}
