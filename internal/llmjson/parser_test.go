package llmjson

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainObject(t *testing.T) {
	result, err := Parse(`{"symbol": "HBL", "revenue": 1500000}`)
	require.NoError(t, err)
	assert.Equal(t, "HBL", result["symbol"])
	assert.Equal(t, float64(1500000), result["revenue"])
}

func TestParseRoundTrip(t *testing.T) {
	original := map[string]any{
		"symbol":     "ENGRO",
		"net_income": 42.5,
		"periods":    []any{"2023", "2024"},
		"nested":     map[string]any{"total_assets": 9.0},
	}
	raw, err := json.Marshal(original)
	require.NoError(t, err)

	result, err := Parse(string(raw))
	require.NoError(t, err)
	assert.Equal(t, original, result)
}

func TestParseFencedBlock(t *testing.T) {
	for name, raw := range map[string]string{
		"json fence":  "```json\n{\"a\": 1}\n```",
		"plain fence": "```\n{\"a\": 1}\n```",
		"with prose":  "Here is the result:\n```json\n{\"a\": 1}\n```\nLet me know if you need more.",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, float64(1), result["a"])
		})
	}
}

func TestParseSurroundingProse(t *testing.T) {
	raw := `Based on the financial statements, here is the extraction:

{"revenue": 100, "net_income": 20}

These figures are in thousands of PKR.`
	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, float64(100), result["revenue"])
	assert.Equal(t, float64(20), result["net_income"])
}

func TestParseTruncatedMidValue(t *testing.T) {
	_, err := Parse(`{"a": 1, "b": "unterminated`)
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Truncated)
}

func TestParseTruncatedNearEnd(t *testing.T) {
	// Closing brace present but the last value is cut off; the decode error
	// lands within the final few characters.
	_, err := Parse(`{"revenue": 100, "net_income": 20, "eps": 1.}`)
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Truncated)
}

func TestParseBulletLines(t *testing.T) {
	raw := `- "revenue": 100,
- "net_income": 20`
	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, float64(100), result["revenue"])
	assert.Equal(t, float64(20), result["net_income"])
}

func TestParseBalancedBlockRecovery(t *testing.T) {
	// The naive first-to-last brace slice spans both objects and fails to
	// parse; the line scan isolates the first balanced block.
	raw := `{"symbol": "OGDC",
"revenue": 500}
trailing commentary with a stray }`
	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "OGDC", result["symbol"])
}

func TestParseRepairsUnquotedKey(t *testing.T) {
	raw := `{symbol: "LUCK", "revenue": 100, "net_income": 20}`
	result, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "LUCK", result["symbol"])
	assert.Equal(t, float64(100), result["revenue"])
}

func TestParseEmpty(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":      "",
		"whitespace": "   \n\t  ",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
		})
	}
}

func TestParseNoObject(t *testing.T) {
	_, err := Parse("I could not extract any data from the document.")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.False(t, perr.Truncated)
	assert.Contains(t, perr.Context, "could not extract")
}
