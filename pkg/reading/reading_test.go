package reading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHiragana(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"カタカナ":  "かたかな",
		"イッ":    "いっ",
		"ひらがな":  "ひらがな",
		"漢字カナ":  "漢字かな",
		"ABC":   "ABC",
		"ヴァイオリン": "ゔぁいおりん",
	}
	for in, want := range tests {
		assert.Equal(t, want, ToHiragana(in), in)
	}
}

func TestAnnotator(t *testing.T) {
	a, err := NewAnnotator()
	require.NoError(t, err)

	tokens := a.Tokens("私は猫が好きです。")
	require.NotEmpty(t, tokens)
	assert.Equal(t, "私", tokens[0].Surface)
	assert.Equal(t, "わたし", tokens[0].Reading)

	assert.Equal(t, "わたしはねこがすきです。", a.Reading("私は猫が好きです。"))

	var found bool
	for _, tok := range a.Tokens("昨日、東京へ行った。") {
		if tok.Surface == "行っ" {
			found = true
			assert.Equal(t, "いっ", tok.Reading)
		}
	}
	assert.True(t, found, "expected conjugated verb token")
}
