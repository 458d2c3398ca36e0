package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/babelduck/pkg/intelligence"
)

func TestDefaultSettings(t *testing.T) {
	settings, err := DefaultSettings()
	require.NoError(t, err)

	assert.True(t, settings.UsingGlobalSettings)
	assert.Equal(t, intelligence.IDFreeTrial, settings.Intelligence.ID)
	require.Len(t, settings.InputHandlers, 3)

	displayed := DisplayedHandlers(settings)
	require.Len(t, displayed, 3)
	translation, ok := displayed[0].(*TranslationHandler)
	require.True(t, ok)
	assert.Equal(t, "English", translation.TargetLanguage)
}

func TestSettingsEncodeDecodeRoundTrip(t *testing.T) {
	settings, err := DefaultSettings()
	require.NoError(t, err)
	settings.InputHandlers = append(settings.InputHandlers, HandlerEntry{
		Handler: NewCommonRevisionHandler("Shorten it.", "Shorter", "S"),
		Display: false,
	})

	data, err := EncodeSettings(settings)
	require.NoError(t, err)

	decoded, err := DecodeSettings(data)
	require.NoError(t, err)

	assert.Equal(t, settings.Intelligence, decoded.Intelligence)
	assert.Equal(t, settings.AutoPlayAudio, decoded.AutoPlayAudio)
	require.Len(t, decoded.InputHandlers, len(settings.InputHandlers))
	for i := range settings.InputHandlers {
		assert.Equal(t, settings.InputHandlers[i].Handler, decoded.InputHandlers[i].Handler)
		assert.Equal(t, settings.InputHandlers[i].Display, decoded.InputHandlers[i].Display)
	}
	assert.Len(t, DisplayedHandlers(decoded), 3)
}

func TestSettingsCloneIsDeep(t *testing.T) {
	settings, err := DefaultSettings()
	require.NoError(t, err)

	copied := settings.Clone()
	copied.Intelligence.ID = "changed"
	copied.InputHandlers[0] = HandlerEntry{Handler: NewRespGenerationHandler(), Display: false}

	assert.Equal(t, intelligence.IDFreeTrial, settings.Intelligence.ID)
	_, stillTranslation := settings.InputHandlers[0].Handler.(*TranslationHandler)
	assert.True(t, stillTranslation)
}
