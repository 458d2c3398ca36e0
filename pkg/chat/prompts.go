package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/go-go-golems/babelduck/pkg/messages"
)

const revisionSystemPrompt = `You're a helpful assistant. Your duty is to assist users in a conversation, and sometimes users will provide you with the message they are about to send, asking you to help modify, correct, translate or rewrite the provided message.First, the user will send you the ongoing conversation history in the following format:
"""
[START]somebody: ...[END]
[START]user: ...[END]
[START]somebody: ...[END]
"""
Then, the user will provide the message text they are about to send:
"""
message content about to send
"""
Next, the user will give an instruction:
"""
instruction about the revision you should do on the message above
"""
Please follow the user's instruction, considering the historical context of the conversation, and revise or rewrite the message. Then, return the revised message in the following JSON format:
"""
{"revision": "..."}
"""
IMPORTANT: The revision you generate is intended for the user to respond the ongoing conversation, not to reply to the user's current instruction.
`

const generationSystemPrompt = `You're a helpful assistant. Your duty is to assist users in a conversation, and sometimes users don't know how to respond, you need to help the user provide a response for reference. First, the user will send you the ongoing conversation history in the following format:
"""
[START]somebody: ...[END]
[START]user: ...[END]
[START]somebody: ...[END]
"""
Next, the user will give an instruction:
"""
instruction on how you should generate relevant repl
"""
Please follow the user's instruction, considering the historical context of the conversation, and provide a recommended response for the user's reference. Then, return the recommended response in the following JSON format:
"""
{"recommended": "..."}
"""
IMPORTANT: The response you generate is intended for the user to respond the ongoing conversation, not to reply to the user's current instruction.
`

const revisionFewShotUser = `here is the ongoing conversation history:
"""
[START]assistant: Hello, how can I assist you?[END]
[START]user: I want to book a room.[END]
[START]assistant: Sure, what kind of room do you need?[END]
"""
here is the message I'm about to send:
"""
我需要一个双人房，住两晚。
"""
here is what you shoud do with the message:
"""
translate it into English
"""`

const revisionFewShotAssistant = `{"revision": "I need a double room for two nights."}`

const generationFewShotUser = `here is the ongoing conversation history:
"""
[START]assistant: Hello, welcome to our interview. Can you please introduce yourself?[END]
[START]user: Sure, my name is John Doe and I have a background in software development.[END]
[START]assistant: Great, John. Can you briefly tell me what data types are in Python?[END]
"""
here is my instruction:
"""
help me answer it
"""`

const generationFewShotAssistant = `{"recommended": "In Python, data types include integers, floats, strings, lists, tuples, sets, and dictionaries."}`

// completeText runs one completion and collapses the reply to plain text,
// draining a streaming reply to exhaustion first.
func completeText(ctx context.Context, intel Intelligence, history []messages.Message) (string, error) {
	replies, err := intel.CompleteChat(ctx, history)
	if err != nil {
		return "", err
	}
	if len(replies) == 0 {
		return "", errors.New("backend returned no reply")
	}

	// Backends that inject marker messages put the textual reply last.
	reply := replies[len(replies)-1]
	if streaming, ok := reply.(*messages.StreamingTextMessage); ok {
		if err := streaming.Drain(ctx, nil); err != nil {
			return "", err
		}
		return streaming.Content(), nil
	}
	if completion, ok := reply.(messages.CompletionMessage); ok {
		return completion.ToCompletionForm().Content, nil
	}
	return "", errors.Errorf("backend reply %s carries no text", reply.Type())
}

// ReviseMessage asks the backend to rework a draft the user is about to
// send, following the handler's instruction and considering the
// conversation so far. The model is few-shot prompted to answer as a
// {"revision": ...} JSON object.
func ReviseMessage(ctx context.Context, intel Intelligence, messageToRevise, userInstruction string, history []messages.Message) (string, error) {
	userMessage := fmt.Sprintf(`here is the ongoing conversation history:
"""
%s
"""
here is the message I'm about to send:
"""
%s
"""
here is what you shoud do with the message:
"""
%s
"""`, historyContext(history), messageToRevise, userInstruction)

	raw, err := completeText(ctx, intel, []messages.Message{
		messages.NewTextMessage(messages.RoleSystem, revisionSystemPrompt, messages.WithDisplayToUser(false)),
		messages.NewTextMessage(messages.RoleUser, revisionFewShotUser, messages.WithDisplayToUser(false)),
		messages.NewTextMessage(messages.RoleAssistant, revisionFewShotAssistant, messages.WithDisplayToUser(false)),
		messages.NewTextMessage(messages.RoleUser, userMessage, messages.WithDisplayToUser(false)),
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Revision string `json:"revision"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", errors.Wrap(err, "could not parse revision reply")
	}
	return parsed.Revision, nil
}

// GenerateMessage asks the backend to compose a recommended reply from
// scratch, for when the user's draft is empty. The model answers as a
// {"recommended": ...} JSON object.
func GenerateMessage(ctx context.Context, intel Intelligence, userInstruction string, history []messages.Message) (string, error) {
	userMessage := fmt.Sprintf(`here is the ongoing conversation history:
"""
%s
"""
here is my instruction:
"""
%s
"""`, historyContext(history), userInstruction)

	raw, err := completeText(ctx, intel, []messages.Message{
		messages.NewTextMessage(messages.RoleSystem, generationSystemPrompt, messages.WithDisplayToUser(false)),
		messages.NewTextMessage(messages.RoleUser, generationFewShotUser, messages.WithDisplayToUser(false)),
		messages.NewTextMessage(messages.RoleAssistant, generationFewShotAssistant, messages.WithDisplayToUser(false)),
		messages.NewTextMessage(messages.RoleUser, userMessage, messages.WithDisplayToUser(false)),
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Recommended string `json:"recommended"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", errors.Wrap(err, "could not parse generation reply")
	}
	return parsed.Recommended, nil
}
