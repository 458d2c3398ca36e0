package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerRoundTrip(t *testing.T) {
	handlers := []InputHandler{
		NewTranslationHandler("English"),
		NewRespGenerationHandler(),
		NewGrammarCheckingHandler(),
		NewCommonGenerationHandler("Suggest an opening line.", "Opening line", "O"),
		NewCommonRevisionHandler("Make it more formal.", "Formal rewrite", "F"),
	}

	for _, handler := range handlers {
		serialized, err := handler.Serialize()
		require.NoError(t, err)

		restored, err := DeserializeHandler(serialized)
		require.NoError(t, err, "handler %s", handler.ImplType())
		assert.Equal(t, handler, restored)
	}
}

func TestDeserializeUnknownHandlerType(t *testing.T) {
	_, err := DeserializeHandler(`{"implType":"mindReading"}`)

	var unknownErr *UnknownInputHandlerTypeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "mindReading", unknownErr.Tag)
}

func TestHandlerRegistryRejectsDuplicates(t *testing.T) {
	registry := NewHandlerRegistry()
	deserializer := func(_ []byte) (InputHandler, error) {
		return NewGrammarCheckingHandler(), nil
	}

	require.NoError(t, registry.Register("custom", deserializer))
	assert.Error(t, registry.Register("custom", deserializer))
}

func TestTranslationHandlerInstruction(t *testing.T) {
	handler := NewTranslationHandler("French")
	assert.Equal(t, "Translate it into French to express the same meaning.", handler.Instruction())
	assert.Equal(t, KindRevision, handler.Kind())
}
