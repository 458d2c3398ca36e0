package intelligence

import (
	"context"
	"encoding/json"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/babelduck/pkg/events"
	"github.com/go-go-golems/babelduck/pkg/messages"
)

const (
	settingsTypeLink  = "link"
	settingsTypeLocal = "local"
)

// OpenAIIntelligence talks to any OpenAI-chat-completions-shaped endpoint.
// Its settings are either local (base URL, key, model configured on the
// backend itself) or a link to a shared named service record resolved
// through the settings store. The same implementation serves both the
// built-in "openai" backend and user-defined custom services.
type OpenAIIntelligence struct {
	typeTag      string
	name         string
	settingsType string
	svcID        string
	local        *ServiceSettings

	services         ServiceSource
	publisherManager *events.PublisherManager
	metadata         events.EventMetadata
	tokenBudget      int
}

type OpenAIOption func(*OpenAIIntelligence)

func WithPublisherManager(pm *events.PublisherManager) OpenAIOption {
	return func(i *OpenAIIntelligence) {
		i.publisherManager = pm
	}
}

func WithEventMetadata(metadata events.EventMetadata) OpenAIOption {
	return func(i *OpenAIIntelligence) {
		i.metadata = metadata
	}
}

// WithTokenBudget caps the token count of the history sent to the endpoint.
// Oldest non-system turns are dropped first. Zero means unbounded, which is
// the default: truncation is backend policy, not a message-model concern.
func WithTokenBudget(budget int) OpenAIOption {
	return func(i *OpenAIIntelligence) {
		i.tokenBudget = budget
	}
}

// NewOpenAIIntelligence links to the shared "openai" service record.
func NewOpenAIIntelligence(services ServiceSource, options ...OpenAIOption) *OpenAIIntelligence {
	ret := &OpenAIIntelligence{
		typeTag:      IDOpenAI,
		name:         "OpenAI",
		settingsType: settingsTypeLink,
		svcID:        IDOpenAI,
		services:     services,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// NewOpenAIIntelligenceWithSettings carries its own local settings.
func NewOpenAIIntelligenceWithSettings(settings ServiceSettings, options ...OpenAIOption) *OpenAIIntelligence {
	ret := &OpenAIIntelligence{
		typeTag:      IDOpenAI,
		name:         "OpenAI",
		settingsType: settingsTypeLocal,
		local:        &settings,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// NewCustomLLMIntelligence links to a user-defined OpenAI-compatible
// service record.
func NewCustomLLMIntelligence(services ServiceSource, svcID string, options ...OpenAIOption) *OpenAIIntelligence {
	ret := &OpenAIIntelligence{
		typeTag:      TypeCustomLLMSvc,
		name:         svcID,
		settingsType: settingsTypeLink,
		svcID:        svcID,
		services:     services,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (i *OpenAIIntelligence) Type() string { return i.typeTag }
func (i *OpenAIIntelligence) Name() string { return i.name }

// BindServices attaches the service registry after deserialization.
func (i *OpenAIIntelligence) BindServices(services ServiceSource) {
	i.services = services
}

// BindEvents attaches the event bus completions publish their progress on.
func (i *OpenAIIntelligence) BindEvents(pm *events.PublisherManager, metadata events.EventMetadata) {
	i.publisherManager = pm
	i.metadata = metadata
}

func (i *OpenAIIntelligence) resolveService() (*ServiceSettings, error) {
	if i.settingsType == settingsTypeLocal {
		if i.local == nil {
			return nil, &InvalidModelSettingsError{Reason: "local settings missing"}
		}
		return i.local, nil
	}
	if i.services == nil {
		return nil, &InvalidModelSettingsError{Reason: "no service registry bound"}
	}
	record, ok, err := i.services.GetLLMService(i.svcID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not resolve LLM service %s", i.svcID)
	}
	if !ok {
		return nil, &InvalidModelSettingsError{Reason: "service settings not found: " + i.svcID}
	}
	return &record.ServiceSettings, nil
}

func (i *OpenAIIntelligence) buildRequest(history []messages.Message) (*openai.ChatCompletionRequest, *ServiceSettings, error) {
	svc, err := i.resolveService()
	if err != nil {
		return nil, nil, err
	}
	if svc.APIKey == "" {
		return nil, nil, &InvalidModelSettingsError{Reason: "API key is not set"}
	}
	if svc.Model == "" {
		return nil, nil, &InvalidModelSettingsError{Reason: "model is not set"}
	}

	turns := messages.BuildCompletionHistory(history)
	if i.tokenBudget > 0 {
		turns, err = TruncateToBudget(turns, i.tokenBudget)
		if err != nil {
			return nil, nil, err
		}
	}

	req := &openai.ChatCompletionRequest{
		Model:    svc.Model,
		Messages: turnsToOpenAI(turns),
	}
	if svc.Temperature != nil {
		req.Temperature = *svc.Temperature
	}
	return req, svc, nil
}

func turnsToOpenAI(turns []messages.Turn) []openai.ChatCompletionMessage {
	ret := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		ret = append(ret, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	return ret
}

func makeClient(svc *ServiceSettings) *openai.Client {
	config := openai.DefaultConfig(svc.APIKey)
	if svc.BaseURL != "" {
		config.BaseURL = svc.BaseURL
	}
	return openai.NewClientWithConfig(config)
}

// CompleteChat returns a single streaming assistant message. The producer
// goroutine keeps pushing deltas until the provider stream is exhausted or
// fails; a failed stream simply ends early with the accumulated partial
// content in place.
func (i *OpenAIIntelligence) CompleteChat(ctx context.Context, history []messages.Message) ([]messages.Message, error) {
	req, svc, err := i.buildRequest(history)
	if err != nil {
		return nil, err
	}

	client := makeClient(svc)
	req.Stream = true
	stream, err := client.CreateChatCompletionStream(ctx, *req)
	if err != nil {
		return nil, errors.Wrap(err, "could not start chat completion stream")
	}

	deltas := make(chan messages.Delta)
	streaming := messages.NewStreamingTextMessage(messages.RoleAssistant, deltas)

	if i.publisherManager != nil {
		i.publisherManager.PublishBlind(events.NewStartEvent(i.metadata))
	}
	go i.pumpStream(ctx, stream, deltas)

	return []messages.Message{streaming}, nil
}

func (i *OpenAIIntelligence) pumpStream(ctx context.Context, stream *openai.ChatCompletionStream, deltas chan<- messages.Delta) {
	defer close(deltas)
	defer stream.Close()

	completion := ""
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			if i.publisherManager != nil {
				i.publisherManager.PublishBlind(events.NewFinalEvent(i.metadata, completion))
			}
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("chat completion stream ended early")
			if i.publisherManager != nil {
				i.publisherManager.PublishBlind(events.NewErrorEvent(i.metadata, err))
			}
			select {
			case deltas <- messages.Delta{Err: err}:
			case <-ctx.Done():
			}
			return
		}

		delta := ""
		if len(response.Choices) > 0 {
			delta = response.Choices[0].Delta.Content
		}
		if delta == "" {
			continue
		}
		completion += delta
		if i.publisherManager != nil {
			i.publisherManager.PublishBlind(events.NewPartialCompletionEvent(i.metadata, delta, completion))
		}
		select {
		case deltas <- messages.Delta{Text: delta}:
		case <-ctx.Done():
			return
		}
	}
}

// CompleteChatBlocking suspends until the full reply is available and
// returns it as a plain text message.
func (i *OpenAIIntelligence) CompleteChatBlocking(ctx context.Context, history []messages.Message) (*messages.TextMessage, error) {
	req, svc, err := i.buildRequest(history)
	if err != nil {
		return nil, err
	}

	client := makeClient(svc)
	resp, err := client.CreateChatCompletion(ctx, *req)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	text := resp.Choices[0].Message.Content
	if i.publisherManager != nil {
		i.publisherManager.PublishBlind(events.NewFinalEvent(i.metadata, text))
	}
	return messages.NewTextMessage(messages.RoleAssistant, text), nil
}

type openAIPayload struct {
	Type         string           `json:"type"`
	SettingsType string           `json:"settingsType"`
	SvcID        string           `json:"svcID,omitempty"`
	Settings     *ServiceSettings `json:"settings,omitempty"`
}

func (i *OpenAIIntelligence) Serialize() (string, error) {
	b, err := json.Marshal(openAIPayload{
		Type:         i.typeTag,
		SettingsType: i.settingsType,
		SvcID:        i.svcID,
		Settings:     i.local,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize openai intelligence")
	}
	return string(b), nil
}

func deserializeOpenAIIntelligence(payload []byte) (ChatIntelligence, error) {
	var p openAIPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "could not deserialize openai intelligence")
	}

	ret := &OpenAIIntelligence{
		typeTag:      p.Type,
		name:         "OpenAI",
		settingsType: p.SettingsType,
		svcID:        p.SvcID,
		local:        p.Settings,
	}
	if p.Type == TypeCustomLLMSvc {
		ret.name = p.SvcID
		if p.Settings != nil && p.Settings.Name != "" {
			ret.name = p.Settings.Name
		}
	}
	if ret.settingsType == "" {
		ret.settingsType = settingsTypeLink
	}
	if ret.svcID == "" && ret.settingsType == settingsTypeLink {
		ret.svcID = IDOpenAI
	}
	return ret, nil
}

var _ ChatIntelligence = (*OpenAIIntelligence)(nil)

func init() {
	defaultRegistry.MustRegister(IDOpenAI, deserializeOpenAIIntelligence)
	defaultRegistry.MustRegister(TypeCustomLLMSvc, deserializeOpenAIIntelligence)
}
