package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON unchanged",
			input: `{"reason":"test"}`,
			want:  `{"reason":"test"}`,
		},
		{
			name:  "strips json fenced block",
			input: "```json\n{\"reason\":\"test\"}\n```",
			want:  `{"reason":"test"}`,
		},
		{
			name:  "strips plain fenced block",
			input: "```\n{\"reason\":\"test\"}\n```",
			want:  `{"reason":"test"}`,
		},
		{
			name:  "strips single line fence with tag",
			input: "```JSON {\"reason\":\"test\"}```",
			want:  `{"reason":"test"}`,
		},
		{
			name:  "trims surrounding whitespace",
			input: "  {\"reason\":\"test\"}  ",
			want:  `{"reason":"test"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare object",
			input: `{"a":1}`,
			want:  `{"a":1}`,
		},
		{
			name:  "leading and trailing prose",
			input: `Here you go: {"a":1} Anything else?`,
			want:  `{"a":1}`,
		},
		{
			name:  "nested objects and arrays",
			input: `x {"a":{"b":[1,{"c":2}]},"d":3} y {"e":4}`,
			want:  `{"a":{"b":[1,{"c":2}]},"d":3}`,
		},
		{
			name:  "braces inside strings",
			input: `{"reason":"you typed } and {{","n":1} trailing }`,
			want:  `{"reason":"you typed } and {{","n":1}`,
		},
		{
			name:  "escaped quote inside string",
			input: `{"reason":"she said \"}\" loudly"} done`,
			want:  `{"reason":"she said \"}\" loudly"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONObject_Failures(t *testing.T) {
	for _, input := range []string{
		"Sorry, I cannot help with that.",
		`{"a": {"b": 1}`,
		`{"a": "unterminated}`,
		"",
	} {
		_, err := extractJSONObject(input)
		assert.ErrorIs(t, err, ErrNoJSONObject, input)
	}
}
