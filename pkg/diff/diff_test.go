package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharsIdentical(t *testing.T) {
	spans := Chars("hello world", "hello world")

	require.Len(t, spans, 1)
	assert.Equal(t, OpEqual, spans[0].Op)
	assert.False(t, Changed(spans))
}

func TestCharsSimpleRevision(t *testing.T) {
	spans := Chars("I goed to school", "I went to school")

	assert.True(t, Changed(spans))
	assert.Equal(t, "I went to school", Apply(spans))

	original := ""
	for _, span := range spans {
		if span.Op != OpInsert {
			original += span.Text
		}
	}
	assert.Equal(t, "I goed to school", original)
}

func TestCharsInsertOnly(t *testing.T) {
	spans := Chars("take time", "take your time")

	assert.True(t, Changed(spans))
	assert.Equal(t, "take your time", Apply(spans))
	for _, span := range spans {
		assert.NotEqual(t, OpDelete, span.Op)
	}
}

func TestCharsEmptyOriginal(t *testing.T) {
	spans := Chars("", "brand new text")

	require.Len(t, spans, 1)
	assert.Equal(t, OpInsert, spans[0].Op)
	assert.Equal(t, "brand new text", spans[0].Text)
}

func TestCharsEmptyRevision(t *testing.T) {
	spans := Chars("all gone", "")

	require.Len(t, spans, 1)
	assert.Equal(t, OpDelete, spans[0].Op)
	assert.Equal(t, "", Apply(spans))
}

func TestCharsUnicode(t *testing.T) {
	spans := Chars("ich möchte gehen", "ich möchte schwimmen gehen")

	assert.True(t, Changed(spans))
	assert.Equal(t, "ich möchte schwimmen gehen", Apply(spans))
}
