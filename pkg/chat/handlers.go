package chat

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// HandlerKind splits input handlers into the two firing modes: generation
// handlers compose a draft from scratch and only fire on an empty draft,
// revision handlers rework an existing draft and only fire on a non-empty
// one.
type HandlerKind string

const (
	KindGeneration HandlerKind = "generation"
	KindRevision   HandlerKind = "revision"
)

// Shortcut is an optional modifier-key binding for a handler.
type Shortcut struct {
	Key  string `json:"key"`
	Ctrl bool   `json:"ctrl"`
	Meta bool   `json:"meta,omitempty"`
}

// InputHandler is one AI-assisted instruction attached to the input box,
// like "translate this" or "help me respond". Handlers serialize into chat
// settings and come back through a registry keyed by their impl type, the
// same way messages do.
type InputHandler interface {
	ImplType() string
	Kind() HandlerKind
	Tooltip() string
	Instruction() string
	Serialize() (string, error)
}

// ShortcutProvider is implemented by handlers that bind a keyboard shortcut.
type ShortcutProvider interface {
	Shortcut() Shortcut
}

// UnknownInputHandlerTypeError reports a persisted handler whose impl type
// has no registered deserializer. Loading fails hard on it; dropping the
// handler silently would shift the indices the UI fires handlers by.
type UnknownInputHandlerTypeError struct {
	Tag string
}

func (e *UnknownInputHandlerTypeError) Error() string {
	return fmt.Sprintf("unknown input handler type: %s", e.Tag)
}

// HandlerDeserializerFunc reconstructs a handler from its serialized form.
type HandlerDeserializerFunc func(payload []byte) (InputHandler, error)

type HandlerRegistry struct {
	mu            sync.RWMutex
	deserializers map[string]HandlerDeserializerFunc
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		deserializers: map[string]HandlerDeserializerFunc{},
	}
}

func (r *HandlerRegistry) Register(implType string, deserializer HandlerDeserializerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deserializers[implType]; ok {
		return errors.Errorf("input handler type %s already registered", implType)
	}
	r.deserializers[implType] = deserializer
	return nil
}

func (r *HandlerRegistry) MustRegister(implType string, deserializer HandlerDeserializerFunc) {
	if err := r.Register(implType, deserializer); err != nil {
		panic(err)
	}
}

func (r *HandlerRegistry) Deserialize(serialized string) (InputHandler, error) {
	var envelope struct {
		ImplType string `json:"implType"`
	}
	if err := json.Unmarshal([]byte(serialized), &envelope); err != nil {
		return nil, errors.Wrap(err, "could not parse input handler envelope")
	}

	r.mu.RLock()
	deserializer, ok := r.deserializers[envelope.ImplType]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownInputHandlerTypeError{Tag: envelope.ImplType}
	}

	return deserializer([]byte(serialized))
}

var defaultHandlerRegistry = NewHandlerRegistry()

func DefaultHandlerRegistry() *HandlerRegistry {
	return defaultHandlerRegistry
}

func DeserializeHandler(serialized string) (InputHandler, error) {
	return defaultHandlerRegistry.Deserialize(serialized)
}

const (
	ImplTypeTranslation      = "translation"
	ImplTypeRespGeneration   = "respGeneration"
	ImplTypeGrammarChecking  = "grammarChecking"
	ImplTypeCommonGeneration = "commonGeneration"
	ImplTypeCommonRevision   = "commonRevision"
)

// TranslationHandler revises the draft into the configured target language.
type TranslationHandler struct {
	TargetLanguage string
}

func NewTranslationHandler(targetLanguage string) *TranslationHandler {
	return &TranslationHandler{TargetLanguage: targetLanguage}
}

func (h *TranslationHandler) ImplType() string  { return ImplTypeTranslation }
func (h *TranslationHandler) Kind() HandlerKind { return KindRevision }
func (h *TranslationHandler) Shortcut() Shortcut {
	return Shortcut{Key: "k", Ctrl: true}
}

func (h *TranslationHandler) Tooltip() string {
	return fmt.Sprintf("Translate the message into %s.", h.TargetLanguage)
}

func (h *TranslationHandler) Instruction() string {
	return fmt.Sprintf("Translate it into %s to express the same meaning.", h.TargetLanguage)
}

func (h *TranslationHandler) Serialize() (string, error) {
	return marshalHandler(map[string]interface{}{
		"implType":       ImplTypeTranslation,
		"type":           KindRevision,
		"targetLanguage": h.TargetLanguage,
	})
}

// RespGenerationHandler asks the model to compose a reply when the user is
// stuck on an empty draft.
type RespGenerationHandler struct{}

func NewRespGenerationHandler() *RespGenerationHandler { return &RespGenerationHandler{} }

func (h *RespGenerationHandler) ImplType() string  { return ImplTypeRespGeneration }
func (h *RespGenerationHandler) Kind() HandlerKind { return KindGeneration }
func (h *RespGenerationHandler) Shortcut() Shortcut {
	return Shortcut{Key: "/", Ctrl: true}
}

func (h *RespGenerationHandler) Tooltip() string     { return "Help generate a response." }
func (h *RespGenerationHandler) Instruction() string { return "Help me respond it." }

func (h *RespGenerationHandler) Serialize() (string, error) {
	return marshalHandler(map[string]interface{}{
		"implType": ImplTypeRespGeneration,
		"type":     KindGeneration,
	})
}

// GrammarCheckingHandler revises the draft for grammar issues.
type GrammarCheckingHandler struct{}

func NewGrammarCheckingHandler() *GrammarCheckingHandler { return &GrammarCheckingHandler{} }

func (h *GrammarCheckingHandler) ImplType() string  { return ImplTypeGrammarChecking }
func (h *GrammarCheckingHandler) Kind() HandlerKind { return KindRevision }
func (h *GrammarCheckingHandler) Shortcut() Shortcut {
	return Shortcut{Key: "g", Ctrl: true}
}

func (h *GrammarCheckingHandler) Tooltip() string     { return "Correct potential grammar issues" }
func (h *GrammarCheckingHandler) Instruction() string { return "Correct potential grammar issues." }

func (h *GrammarCheckingHandler) Serialize() (string, error) {
	return marshalHandler(map[string]interface{}{
		"implType": ImplTypeGrammarChecking,
		"type":     KindRevision,
	})
}

// CommonGenerationHandler is a user-authored generation instruction.
type CommonGenerationHandler struct {
	CustomInstruction string
	CustomTooltip     string
	IconChar          string
}

func NewCommonGenerationHandler(instruction, tooltip, iconChar string) *CommonGenerationHandler {
	return &CommonGenerationHandler{
		CustomInstruction: instruction,
		CustomTooltip:     tooltip,
		IconChar:          iconChar,
	}
}

func (h *CommonGenerationHandler) ImplType() string    { return ImplTypeCommonGeneration }
func (h *CommonGenerationHandler) Kind() HandlerKind   { return KindGeneration }
func (h *CommonGenerationHandler) Tooltip() string     { return h.CustomTooltip }
func (h *CommonGenerationHandler) Instruction() string { return h.CustomInstruction }

func (h *CommonGenerationHandler) Serialize() (string, error) {
	return marshalHandler(map[string]interface{}{
		"implType":    ImplTypeCommonGeneration,
		"type":        KindGeneration,
		"instruction": h.CustomInstruction,
		"tooltip":     h.CustomTooltip,
		"iconChar":    h.IconChar,
	})
}

// CommonRevisionHandler is a user-authored revision instruction.
type CommonRevisionHandler struct {
	CustomInstruction string
	CustomTooltip     string
	IconChar          string
}

func NewCommonRevisionHandler(instruction, tooltip, iconChar string) *CommonRevisionHandler {
	return &CommonRevisionHandler{
		CustomInstruction: instruction,
		CustomTooltip:     tooltip,
		IconChar:          iconChar,
	}
}

func (h *CommonRevisionHandler) ImplType() string    { return ImplTypeCommonRevision }
func (h *CommonRevisionHandler) Kind() HandlerKind   { return KindRevision }
func (h *CommonRevisionHandler) Tooltip() string     { return h.CustomTooltip }
func (h *CommonRevisionHandler) Instruction() string { return h.CustomInstruction }

func (h *CommonRevisionHandler) Serialize() (string, error) {
	return marshalHandler(map[string]interface{}{
		"implType":    ImplTypeCommonRevision,
		"type":        KindRevision,
		"instruction": h.CustomInstruction,
		"tooltip":     h.CustomTooltip,
		"iconChar":    h.IconChar,
	})
}

func marshalHandler(fields map[string]interface{}) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", errors.Wrap(err, "could not serialize input handler")
	}
	return string(b), nil
}

type customHandlerPayload struct {
	Instruction string `json:"instruction"`
	Tooltip     string `json:"tooltip"`
	IconChar    string `json:"iconChar"`
}

func init() {
	defaultHandlerRegistry.MustRegister(ImplTypeTranslation, func(payload []byte) (InputHandler, error) {
		var p struct {
			TargetLanguage string `json:"targetLanguage"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, errors.Wrap(err, "could not deserialize translation handler")
		}
		return NewTranslationHandler(p.TargetLanguage), nil
	})
	defaultHandlerRegistry.MustRegister(ImplTypeRespGeneration, func(_ []byte) (InputHandler, error) {
		return NewRespGenerationHandler(), nil
	})
	defaultHandlerRegistry.MustRegister(ImplTypeGrammarChecking, func(_ []byte) (InputHandler, error) {
		return NewGrammarCheckingHandler(), nil
	})
	defaultHandlerRegistry.MustRegister(ImplTypeCommonGeneration, func(payload []byte) (InputHandler, error) {
		var p customHandlerPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, errors.Wrap(err, "could not deserialize custom generation handler")
		}
		return NewCommonGenerationHandler(p.Instruction, p.Tooltip, p.IconChar), nil
	})
	defaultHandlerRegistry.MustRegister(ImplTypeCommonRevision, func(payload []byte) (InputHandler, error) {
		var p customHandlerPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, errors.Wrap(err, "could not deserialize custom revision handler")
		}
		return NewCommonRevisionHandler(p.Instruction, p.Tooltip, p.IconChar), nil
	})
}

var (
	_ InputHandler     = (*TranslationHandler)(nil)
	_ InputHandler     = (*RespGenerationHandler)(nil)
	_ InputHandler     = (*GrammarCheckingHandler)(nil)
	_ InputHandler     = (*CommonGenerationHandler)(nil)
	_ InputHandler     = (*CommonRevisionHandler)(nil)
	_ ShortcutProvider = (*TranslationHandler)(nil)
	_ ShortcutProvider = (*RespGenerationHandler)(nil)
	_ ShortcutProvider = (*GrammarCheckingHandler)(nil)
)
