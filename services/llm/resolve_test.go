package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveOutputText_PlainString(t *testing.T) {
	text, ok := ResolveOutputText("Here is your draft.")
	assert.True(t, ok)
	assert.Equal(t, "Here is your draft.", text)
}

func TestResolveOutputText_ValueField(t *testing.T) {
	text, ok := ResolveOutputText(map[string]any{"value": "nested text", "format": "markdown"})
	assert.True(t, ok)
	assert.Equal(t, "nested text", text)
}

func TestResolveOutputText_FormatOnlyIsSuppressed(t *testing.T) {
	text, ok := ResolveOutputText(map[string]any{"format": "markdown"})
	assert.False(t, ok)
	assert.Equal(t, "", text)
}

func TestResolveOutputText_WhitespaceOnlyIsSuppressed(t *testing.T) {
	for _, input := range []any{"", "   \n\t ", map[string]any{"value": "  "}} {
		_, ok := ResolveOutputText(input)
		assert.False(t, ok, "input %v should not produce display text", input)
	}
}

func TestResolveOutputText_UnknownShapeStringifies(t *testing.T) {
	text, ok := ResolveOutputText(map[string]any{"tokens": float64(42)})
	assert.True(t, ok)
	assert.JSONEq(t, `{"tokens":42}`, text)

	text, ok = ResolveOutputText(3.5)
	assert.True(t, ok)
	assert.Equal(t, "3.5", text)
}

func TestResolveOutputText_Nil(t *testing.T) {
	_, ok := ResolveOutputText(nil)
	assert.False(t, ok)
}
