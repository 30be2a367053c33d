package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
)

type recordingSpeaker struct {
	texts []string
}

func (s *recordingSpeaker) Speak(ctx context.Context, text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func newTestSession(t *testing.T, handler http.HandlerFunc, settings domain.Settings, speaker domain.Speaker) *Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSession(srv.URL, srv.Client(), settings, speaker)
}

func streamChunks(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		for _, c := range chunks {
			w.Write([]byte(c))
			w.(http.Flusher).Flush()
		}
	}
}

func TestSendAccumulatesReply(t *testing.T) {
	var got domain.ChatRequest
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		streamChunks("Hel", "lo ", "there")(w, r)
	}
	speaker := &recordingSpeaker{}
	settings := domain.DefaultSettings()
	settings.EnableTTS = true
	s := newTestSession(t, handler, settings, speaker)

	var seen []string
	reply, err := s.Send(context.Background(), "  hi  ", func(c string) { seen = append(seen, c) })
	require.NoError(t, err)

	assert.Equal(t, "Hello there", reply)
	assert.Equal(t, "Hello there", strings.Join(seen, ""))
	assert.Equal(t, []domain.ChatMessage{{Role: domain.UserRole, Content: "hi"}}, got.Messages)
	assert.Equal(t, "llama3.1", got.Settings.Model)
	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.UserRole, Content: "hi"},
		{Role: domain.AssistantRole, Content: "Hello there"},
	}, s.Messages())
	assert.Equal(t, []string{"Hello there"}, speaker.texts)
	assert.False(t, s.Streaming())
}

func TestSendSendsHistory(t *testing.T) {
	var got domain.ChatRequest
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		streamChunks("ok")(w, r)
	}
	s := newTestSession(t, handler, domain.DefaultSettings(), nil)

	_, err := s.Send(context.Background(), "one", nil)
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "two", nil)
	require.NoError(t, err)

	require.Len(t, got.Messages, 3)
	assert.Equal(t, "one", got.Messages[0].Content)
	assert.Equal(t, domain.AssistantRole, got.Messages[1].Role)
	assert.Equal(t, "two", got.Messages[2].Content)
}

func TestSendWithoutTTSDoesNotSpeak(t *testing.T) {
	speaker := &recordingSpeaker{}
	s := newTestSession(t, streamChunks("quiet"), domain.DefaultSettings(), speaker)

	_, err := s.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Empty(t, speaker.texts)
}

func TestSetSpeakerAfterEnablingTTS(t *testing.T) {
	s := newTestSession(t, streamChunks("spoken"), domain.DefaultSettings(), nil)

	settings := s.Settings()
	settings.EnableTTS = true
	require.NoError(t, s.SetSettings(settings))
	speaker := &recordingSpeaker{}
	s.SetSpeaker(speaker)

	_, err := s.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"spoken"}, speaker.texts)
}

func TestSendRejectedRequest(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"max_tokens must be between 16 and 8192","code":"ValidationError"}`))
	}
	s := newTestSession(t, handler, domain.DefaultSettings(), nil)

	_, err := s.Send(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "max_tokens")

	// No assistant placeholder for a rejected request.
	assert.Equal(t, []domain.ChatMessage{{Role: domain.UserRole, Content: "hi"}}, s.Messages())
}

func TestSendEmptyMessage(t *testing.T) {
	s := NewSession("http://127.0.0.1:1", nil, domain.DefaultSettings(), nil)
	_, err := s.Send(context.Background(), "   ", nil)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Empty(t, s.Messages())
}

func TestCancelKeepsPartialReply(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Hel"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}
	s := newTestSession(t, handler, domain.DefaultSettings(), nil)

	var busyErr error
	reply, err := s.Send(context.Background(), "hi", func(string) {
		_, busyErr = s.Send(context.Background(), "again", nil)
		assert.True(t, s.Cancel())
	})

	assert.ErrorIs(t, busyErr, ErrBusy)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "Hel", reply)
	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.UserRole, Content: "hi"},
		{Role: domain.AssistantRole, Content: "Hel"},
	}, s.Messages())
	assert.False(t, s.Cancel())
}

func TestResetDuringStreamDropsLateChunks(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}
	s := newTestSession(t, handler, domain.DefaultSettings(), nil)

	_, err := s.Send(context.Background(), "hi", func(string) { s.Reset() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Messages())
}

func TestSendReassemblesSplitRunes(t *testing.T) {
	word := []byte("café ☕")
	// Split inside both multi-byte sequences.
	s := newTestSession(t, streamChunks(string(word[:4]), string(word[4:8]), string(word[8:])), domain.DefaultSettings(), nil)

	var chunks []string
	reply, err := s.Send(context.Background(), "hi", func(c string) { chunks = append(chunks, c) })
	require.NoError(t, err)
	assert.Equal(t, "café ☕", reply)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %q split a rune", c)
	}
}

func TestCompletePrefix(t *testing.T) {
	euro := []byte("€") // 3 bytes
	tests := []struct {
		name string
		in   []byte
		want int
	}{
		{"empty", nil, 0},
		{"ascii", []byte("abc"), 3},
		{"complete multibyte", append([]byte("a"), euro...), 4},
		{"one byte of three", append([]byte("a"), euro[0]), 1},
		{"two bytes of three", append([]byte("a"), euro[:2]...), 1},
		{"stray continuation byte", []byte{'a', 0x80}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, completePrefix(tt.in))
		})
	}
}

func TestSetSettingsValidatesWholeCopy(t *testing.T) {
	s := NewSession("http://127.0.0.1:1", nil, domain.DefaultSettings(), nil)

	bad := s.Settings()
	bad.Model = "other"
	bad.Temperature = 3
	require.Error(t, s.SetSettings(bad))
	assert.Equal(t, "llama3.1", s.Settings().Model)

	good := s.Settings()
	good.Model = "qwen2.5"
	require.NoError(t, s.SetSettings(good))
	assert.Equal(t, "qwen2.5", s.Settings().Model)
}

func TestRestore(t *testing.T) {
	s := NewSession("http://127.0.0.1:1", nil, domain.DefaultSettings(), nil)
	msgs := []domain.ChatMessage{
		{Role: domain.UserRole, Content: "q"},
		{Role: domain.AssistantRole, Content: "a"},
	}
	require.NoError(t, s.Restore(msgs))
	assert.Equal(t, msgs, s.Messages())

	require.Error(t, s.Restore([]domain.ChatMessage{{Role: "robot", Content: "x"}}))
	assert.Equal(t, msgs, s.Messages())
}

func toolSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.AllowFileRead = true
	s.AllowShell = true
	s.AllowedRoot = "/srv/project"
	return s
}

func TestReadFileDisabledLocally(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, domain.DefaultSettings(), nil)

	out, err := s.ReadFile(context.Background(), "README.md")
	require.NoError(t, err)
	assert.Equal(t, "File reading disabled.", out)
}

func TestReadFileContent(t *testing.T) {
	var got map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tools/file", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"type":      "file",
			"content":   strings.Repeat("é", MaxToolOutput+10),
			"truncated": false,
		})
	}
	s := newTestSession(t, handler, toolSettings(), nil)

	out, err := s.ReadFile(context.Background(), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, MaxToolOutput, utf8.RuneCountInString(out))
	assert.Equal(t, map[string]any{
		"filepath":      "notes.txt",
		"allowedRoot":   "/srv/project",
		"allowFileRead": true,
	}, got)
}

func TestReadFileDirectory(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"directory","entries":[{"name":"src","type":"dir"},{"name":"go.mod","type":"file"}]}`))
	}
	s := newTestSession(t, handler, toolSettings(), nil)

	out, err := s.ReadFile(context.Background(), ".")
	require.NoError(t, err)
	assert.Equal(t, "dir\tsrc\nfile\tgo.mod", out)
}

func TestReadFileUnknownShape(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"mystery"}`))
	}
	s := newTestSession(t, handler, toolSettings(), nil)

	out, err := s.ReadFile(context.Background(), ".")
	require.NoError(t, err)
	assert.Equal(t, "Unknown response.", out)
}

func TestReadFileServerError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"path is outside the allowed root","code":"AccessDenied"}`))
	}
	s := newTestSession(t, handler, toolSettings(), nil)

	out, err := s.ReadFile(context.Background(), "/etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "Error: 403 path is outside the allowed root", out)
}

func TestShell(t *testing.T) {
	tests := []struct {
		name     string
		settings func() domain.Settings
		body     string
		want     string
	}{
		{"disabled", domain.DefaultSettings, "", "Shell disabled."},
		{"stdout", toolSettings, `{"stdout":"hi\n","stderr":"warn"}`, "hi\n"},
		{"stderr when stdout empty", toolSettings, `{"stdout":"","stderr":"warn"}`, "warn"},
		{"nothing", toolSettings, `{"stdout":"","stderr":""}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			handler := func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/tools/shell", r.URL.Path)
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Write([]byte(tt.body))
			}
			s := newTestSession(t, handler, tt.settings(), nil)

			out, err := s.Shell(context.Background(), "echo hi", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			if tt.body != "" {
				assert.Equal(t, "echo hi", got["cmd"])
				assert.Equal(t, true, got["allowShell"])
				assert.NotContains(t, got, "cwd")
			}
		})
	}
}

func TestShellServerError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"command exited with status 2","code":"ExecutionFailed","stdout":"","stderr":"boom","exitCode":2}`))
	}
	s := newTestSession(t, handler, toolSettings(), nil)

	out, err := s.Shell(context.Background(), "false", "sub")
	require.NoError(t, err)
	assert.Equal(t, "Error: 500 command exited with status 2", out)
}
