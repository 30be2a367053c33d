package chatclient

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), s)
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	want := domain.DefaultSettings()
	want.Provider = domain.ProviderLMStudio
	want.BaseURL = "http://localhost:1234"
	want.AllowFileRead = true
	want.AllowedRoot = "/srv/project"

	require.NoError(t, SaveSettings(path, want))
	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoadSettingsPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":"phi3","temperature":0.1}`), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "phi3", s.Model)
	assert.Equal(t, 0.1, s.Temperature)
	assert.Equal(t, domain.DefaultSettings().MaxTokens, s.MaxTokens)
	assert.Equal(t, domain.DefaultSystemPrompt, s.System)
}

func TestLoadSettingsRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"top_p":7}`), 0o644))

	_, err := LoadSettings(path)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestSaveSettingsRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := domain.DefaultSettings()
	s.MaxTokens = 0

	require.Error(t, SaveSettings(path, s))
	assert.NoFileExists(t, path)
}

func TestTranscriptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	msgs := []domain.ChatMessage{
		{Role: domain.UserRole, Content: "hi"},
		{Role: domain.AssistantRole, Content: "hello ☕"},
	}

	require.NoError(t, SaveTranscript(path, msgs))
	got, err := LoadTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, msgs, got)

	require.NoError(t, SaveTranscript(path, nil))
	got, err = LoadTranscript(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}
