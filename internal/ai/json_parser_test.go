package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdictShape struct {
	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateID string `json:"duplicate_id"`
	Reasoning   string `json:"reasoning"`
}

func TestParseWellFormed(t *testing.T) {
	result := Parse[verdictShape](`{"is_duplicate": true, "duplicate_id": "t-1", "reasoning": "same goal"}`)
	require.True(t, result.Success)
	assert.True(t, result.Data.IsDuplicate)
	assert.Equal(t, "t-1", result.Data.DuplicateID)
}

func TestParseFenced(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"json fence", "```json\n{\"is_duplicate\": false, \"reasoning\": \"different env\"}\n```"},
		{"bare fence", "```\n{\"is_duplicate\": false, \"reasoning\": \"different env\"}\n```"},
		{"fence without newlines", "```json{\"is_duplicate\": false, \"reasoning\": \"different env\"}```"},
		{"single backticks", "`{\"is_duplicate\": false, \"reasoning\": \"different env\"}`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse[verdictShape](tt.input)
			require.True(t, result.Success, "error: %s", result.Error)
			assert.False(t, result.Data.IsDuplicate)
			assert.Equal(t, "different env", result.Data.Reasoning)
		})
	}
}

func TestParseWithLeadingProse(t *testing.T) {
	input := `Sure! Here is my analysis:

{"is_duplicate": true, "duplicate_id": "t-9", "reasoning": "same problem"}

Let me know if you need anything else.`

	result := Parse[verdictShape](input)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.True(t, result.Data.IsDuplicate)
	assert.Equal(t, "t-9", result.Data.DuplicateID)
}

func TestParseTrailingCommaAndUnquotedKeys(t *testing.T) {
	result := Parse[verdictShape](`{is_duplicate: true, duplicate_id: "t-2", reasoning: "same goal",}`)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.True(t, result.Data.IsDuplicate)
	assert.Equal(t, "t-2", result.Data.DuplicateID)
}

func TestParseTruncatedMidObject(t *testing.T) {
	// Cut off mid-way through the reasoning string: the boolean and the id
	// fields are complete and must be recovered.
	input := `{"is_duplicate": true, "duplicate_id": "t-3", "reasoning": "this explanation was cut o`

	result := Parse[verdictShape](input)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.True(t, result.Data.IsDuplicate)
	assert.Equal(t, "t-3", result.Data.DuplicateID)
	assert.Empty(t, result.Data.Reasoning)
}

func TestParseTruncatedInsideOpenFence(t *testing.T) {
	// Truncation ate the closing fence along with the tail of the object, so
	// fence stripping and extraction both miss; repair must still recover
	// the complete fields.
	input := "```json\n{\"is_duplicate\": true, \"duplicate_id\": \"t-7\", \"reasoning\": \"Same underl"

	result := Parse[verdictShape](input)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.True(t, result.Data.IsDuplicate)
	assert.Equal(t, "t-7", result.Data.DuplicateID)
	assert.Empty(t, result.Data.Reasoning)
}

func TestParseTruncatedAfterProse(t *testing.T) {
	input := `Here is my analysis:
{"is_duplicate": false, "duplicate_id": null, "reasoning": "the environments diff`

	result := Parse[verdictShape](input)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.False(t, result.Data.IsDuplicate)
	assert.Empty(t, result.Data.Reasoning)
}

func TestParseTruncatedArray(t *testing.T) {
	input := `[{"action": "Fix deploy", "priority": "high"}, {"action": "incomple`

	result := Parse[[]extractedItem](input)
	require.True(t, result.Success, "error: %s", result.Error)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "Fix deploy", result.Data[0].Action)
}

func TestParseGarbage(t *testing.T) {
	for _, input := range []string{"", "   ", "no json here at all", "{{{{", "]["} {
		result := Parse[verdictShape](input)
		assert.False(t, result.Success, "input %q should not parse", input)
		assert.NotEmpty(t, result.Error)
	}
}

func TestParseDisableCleanup(t *testing.T) {
	result := Parse[verdictShape]("```json\n{\"is_duplicate\": false}\n```", ParseOptions{DisableCleanup: true})
	assert.False(t, result.Success)
}

func TestParseSizeLimit(t *testing.T) {
	result := Parse[verdictShape](`{"is_duplicate": false}`, ParseOptions{MaxInputSize: 5})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "size limit")
}

func TestParseOrDefault(t *testing.T) {
	fallback := verdictShape{Reasoning: "fallback"}

	got := ParseOrDefault[verdictShape]("garbage", fallback)
	assert.Equal(t, "fallback", got.Reasoning)

	got = ParseOrDefault[verdictShape](`{"reasoning": "parsed"}`, fallback)
	assert.Equal(t, "parsed", got.Reasoning)
}

func TestRepairTruncated(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "truncated mid string value",
			input: `{"a": 1, "b": "cut of`,
			want:  `{"a": 1}`,
		},
		{
			name:  "truncated after nested object",
			input: `{"a": {"x": 1}, "b": "cut`,
			want:  `{"a": {"x": 1}}`,
		},
		{
			name:  "truncated array keeps complete elements",
			input: `[{"a": 1}, {"b": 2}, {"c":`,
			want:  `[{"a": 1}, {"b": 2}]`,
		},
		{
			name:  "balanced input needs no repair",
			input: `{"a": 1}`,
			want:  "",
		},
		{
			name:  "no complete field to salvage",
			input: `{"a": "never finis`,
			want:  "",
		},
		{
			name:  "not json at all",
			input: `hello world`,
			want:  "",
		},
		{
			name:  "leading fence sliced off",
			input: "```json\n{\"a\": 1, \"b\": \"cut of",
			want:  `{"a": 1}`,
		},
		{
			name:  "escaped quote inside string",
			input: `{"a": "say \"hi\"", "b": "cut of`,
			want:  `{"a": "say \"hi\""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairTruncated(tt.input))
		})
	}
}
