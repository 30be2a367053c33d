package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
)

func TestApplySetting(t *testing.T) {
	base := domain.DefaultSettings()

	next, err := applySetting(base, "temperature", "0.2")
	require.NoError(t, err)
	assert.Equal(t, 0.2, next.Temperature)
	assert.Equal(t, base.Model, next.Model)

	next, err = applySetting(base, "model", "qwen2.5:7b")
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:7b", next.Model)

	next, err = applySetting(base, "allowShell", "true")
	require.NoError(t, err)
	assert.True(t, next.AllowShell)

	next, err = applySetting(base, "provider", `"lmstudio"`)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderLMStudio, next.Provider)
}

func TestApplySettingErrors(t *testing.T) {
	base := domain.DefaultSettings()

	_, err := applySetting(base, "colour", "blue")
	assert.ErrorContains(t, err, "unknown setting")

	_, err = applySetting(base, "max_tokens", "lots")
	assert.ErrorContains(t, err, "max_tokens")
}
