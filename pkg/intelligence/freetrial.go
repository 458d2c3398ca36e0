package intelligence

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/babelduck/pkg/events"
	"github.com/go-go-golems/babelduck/pkg/messages"
)

const (
	defaultFreeTrialBaseURL = "https://api.siliconflow.cn/v1"
	defaultFreeTrialModel   = "Qwen/Qwen2.5-7B-Instruct"
)

// TokenSource hands out short-lived tokens for the free-trial endpoint.
type TokenSource interface {
	FetchToken(ctx context.Context) (string, error)
}

// HTTPTokenSource fetches a token from a JSON endpoint returning {"token": ...}.
type HTTPTokenSource struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPTokenSource(endpoint string) *HTTPTokenSource {
	return &HTTPTokenSource{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPTokenSource) FetchToken(ctx context.Context) (string, error) {
	if s.Endpoint == "" {
		return "", &FreeTrialChatError{Reason: "token endpoint is not set"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "could not build token request")
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", &FreeTrialChatError{Reason: "token request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &FreeTrialChatError{Reason: "could not decode token response", Err: err}
	}
	if payload.Token == "" {
		return "", &FreeTrialChatError{Reason: "failed to get token"}
	}
	return payload.Token, nil
}

// FreeTrialIntelligence streams replies through a shared trial endpoint,
// authenticating each completion with a freshly fetched short-lived token.
// The first completion of a chat additionally returns a FreeTrialMessage
// disclaimer ahead of the reply; later completions detect the marker in
// the history and skip it.
type FreeTrialIntelligence struct {
	tokens  TokenSource
	baseURL string
	model   string

	publisherManager *events.PublisherManager
	metadata         events.EventMetadata
	tokenBudget      int
}

type FreeTrialOption func(*FreeTrialIntelligence)

func WithFreeTrialModel(baseURL string, model string) FreeTrialOption {
	return func(i *FreeTrialIntelligence) {
		i.baseURL = baseURL
		i.model = model
	}
}

func NewFreeTrialIntelligence(tokens TokenSource, options ...FreeTrialOption) *FreeTrialIntelligence {
	ret := &FreeTrialIntelligence{
		tokens:  tokens,
		baseURL: defaultFreeTrialBaseURL,
		model:   defaultFreeTrialModel,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (i *FreeTrialIntelligence) Type() string { return IDFreeTrial }
func (i *FreeTrialIntelligence) Name() string { return "Free Trial" }

// BindTokenSource attaches the token source after deserialization.
func (i *FreeTrialIntelligence) BindTokenSource(tokens TokenSource) {
	i.tokens = tokens
}

// BindEvents attaches the event bus; the inner completion backend inherits
// it on every call.
func (i *FreeTrialIntelligence) BindEvents(pm *events.PublisherManager, metadata events.EventMetadata) {
	i.publisherManager = pm
	i.metadata = metadata
}

// CompleteChat fetches a token up front so trial-service failures surface
// here as FreeTrialChatError rather than mid-stream.
func (i *FreeTrialIntelligence) CompleteChat(ctx context.Context, history []messages.Message) ([]messages.Message, error) {
	if i.model == "" {
		return nil, &FreeTrialChatError{Reason: "free trial model is not set"}
	}
	if i.tokens == nil {
		return nil, &FreeTrialChatError{Reason: "no token source bound"}
	}

	token, err := i.tokens.FetchToken(ctx)
	if err != nil {
		var trialErr *FreeTrialChatError
		if errors.As(err, &trialErr) {
			return nil, err
		}
		return nil, &FreeTrialChatError{Reason: "could not fetch trial token", Err: err}
	}

	backend := NewOpenAIIntelligenceWithSettings(ServiceSettings{
		BaseURL: i.baseURL,
		APIKey:  token,
		Model:   i.model,
	}, WithTokenBudget(i.tokenBudget))
	backend.BindEvents(i.publisherManager, i.metadata)

	reply, err := backend.CompleteChat(ctx, history)
	if err != nil {
		return nil, err
	}

	if messages.ContainsFreeTrialMessage(history) {
		return reply, nil
	}
	return append([]messages.Message{messages.NewFreeTrialMessage()}, reply...), nil
}

func (i *FreeTrialIntelligence) Serialize() (string, error) {
	b, err := json.Marshal(map[string]string{"type": IDFreeTrial})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize free trial intelligence")
	}
	return string(b), nil
}

func deserializeFreeTrialIntelligence(_ []byte) (ChatIntelligence, error) {
	return NewFreeTrialIntelligence(nil), nil
}

var _ ChatIntelligence = (*FreeTrialIntelligence)(nil)

func init() {
	defaultRegistry.MustRegister(IDFreeTrial, deserializeFreeTrialIntelligence)
}
