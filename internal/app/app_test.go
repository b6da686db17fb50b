package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppWithoutAPIKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("PSXLENS_CONFIG", filepath.Join(t.TempDir(), "psxlens.toml"))

	a, err := NewApp("")
	require.NoError(t, err)
	defer a.Close()

	// A missing key wires a disabled client, never a nil one: analysis calls
	// fail with an error through the pipeline's soft-fail path instead of
	// panicking inside a worker.
	require.NotNil(t, a.OpenRouterClient)
	_, _, err = a.OpenRouterClient.Call(context.Background(), nil, "openai/gpt-4o", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}
