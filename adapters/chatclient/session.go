package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

// MaxToolOutput bounds tool output shown in the transcript, in characters.
const MaxToolOutput = 4000

var ErrBusy = errors.New("a reply is already streaming")

// Session owns one conversation against the chat server. It is the only
// writer of its message list.
type Session struct {
	serverURL  string
	httpClient *http.Client

	mu       sync.Mutex
	speaker  domain.Speaker
	settings domain.Settings
	messages []domain.ChatMessage
	cancel   context.CancelFunc
	gen      int
}

// NewSession creates a session. speaker may be nil when no voice output is wanted.
func NewSession(serverURL string, httpClient *http.Client, settings domain.Settings, speaker domain.Speaker) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Session{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: httpClient,
		speaker:    speaker,
		settings:   settings,
	}
}

// Send posts the conversation plus text and streams the reply. Once the server
// accepts the request an empty assistant message is appended and grows with
// every chunk, each of which is also passed to onChunk. After a cancellation
// the partial reply stays in the conversation and the context error is returned.
func (s *Session) Send(ctx context.Context, text string, onChunk func(string)) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ValidationError("message is empty")
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return "", ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.UserRole, Content: text})
	req := domain.ChatRequest{
		Messages: append([]domain.ChatMessage(nil), s.messages...),
		Settings: s.settings,
	}
	gen := s.gen
	speaker := s.speaker
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	resp, err := s.postJSON(ctx, "/api/chat", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}

	idx, ok := s.appendPlaceholder(gen)
	if !ok {
		return "", context.Canceled
	}

	var reply strings.Builder
	err = readUTF8Chunks(resp.Body, func(chunk string) {
		if !s.appendChunk(gen, idx, chunk) {
			return
		}
		reply.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return reply.String(), ctx.Err()
		}
		return reply.String(), fmt.Errorf("reading reply: %w", err)
	}

	if req.Settings.EnableTTS && speaker != nil {
		if err := speaker.Speak(ctx, reply.String()); err != nil {
			log.WithCtx(ctx).Warn("speaking reply", zap.Error(err))
		}
	}
	return reply.String(), nil
}

func (s *Session) appendPlaceholder(gen int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return 0, false
	}
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.AssistantRole})
	return len(s.messages) - 1, true
}

func (s *Session) appendChunk(gen, idx int, chunk string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || idx >= len(s.messages) {
		return false
	}
	s.messages[idx].Content += chunk
	return true
}

// Cancel aborts the reply in flight, if any.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.messages...)
}

// Reset starts a new conversation, aborting any reply in flight.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.messages = nil
}

// Restore replaces the conversation, e.g. with a transcript loaded from disk.
func (s *Session) Restore(messages []domain.ChatMessage) error {
	if len(messages) > 0 {
		if err := domain.ValidateConversation(messages); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.messages = append([]domain.ChatMessage(nil), messages...)
	return nil
}

// SetSpeaker replaces the voice output used for later replies.
func (s *Session) SetSpeaker(speaker domain.Speaker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaker = speaker
}

func (s *Session) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings commits a staged copy after validating it as a whole.
func (s *Session) SetSettings(next domain.Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = next
	return nil
}

// ReadFile asks the server for a file or directory listing and renders it as text.
func (s *Session) ReadFile(ctx context.Context, path string) (string, error) {
	settings := s.Settings()
	if !settings.AllowFileRead {
		return "File reading disabled.", nil
	}

	resp, err := s.postJSON(ctx, "/api/tools/file", domain.FileRequest{
		Path:          &path,
		AllowedRoot:   &settings.AllowedRoot,
		AllowFileRead: true,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return toolError(resp), nil
	}

	var body struct {
		Type    domain.ToolKind   `json:"type"`
		Content string            `json:"content"`
		Entries []domain.DirEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding file response: %w", err)
	}

	switch body.Type {
	case domain.ToolFile:
		return truncateRunes(body.Content, MaxToolOutput), nil
	case domain.ToolDirectory:
		lines := make([]string, 0, len(body.Entries))
		for _, e := range body.Entries {
			lines = append(lines, e.Type+"\t"+e.Name)
		}
		return truncateRunes(strings.Join(lines, "\n"), MaxToolOutput), nil
	default:
		return "Unknown response.", nil
	}
}

// Shell runs cmd on the server and returns stdout, or stderr when stdout is empty.
func (s *Session) Shell(ctx context.Context, cmd, cwd string) (string, error) {
	settings := s.Settings()
	if !settings.AllowShell {
		return "Shell disabled.", nil
	}

	resp, err := s.postJSON(ctx, "/api/tools/shell", domain.ShellRequest{
		Cmd:         &cmd,
		Cwd:         cwd,
		AllowedRoot: &settings.AllowedRoot,
		AllowShell:  true,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return toolError(resp), nil
	}

	var body struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding shell response: %w", err)
	}
	out := body.Stdout
	if out == "" {
		out = body.Stderr
	}
	return truncateRunes(out, MaxToolOutput), nil
}

func (s *Session) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	return resp, nil
}

type errorBody struct {
	Error string           `json:"error"`
	Code  domain.ErrorKind `json:"code"`
}

func decodeErrorBody(resp *http.Response) errorBody {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return body
}

func responseError(resp *http.Response) error {
	body := decodeErrorBody(resp)
	return &domain.Error{
		Kind:    kindOrInternal(body.Code),
		Message: fmt.Sprintf("server returned %d: %s", resp.StatusCode, body.Error),
	}
}

func toolError(resp *http.Response) string {
	body := decodeErrorBody(resp)
	return fmt.Sprintf("Error: %d %s", resp.StatusCode, body.Error)
}

func kindOrInternal(kind domain.ErrorKind) domain.ErrorKind {
	if kind == "" {
		return domain.KindInternal
	}
	return kind
}

// readUTF8Chunks passes each read to fn as text, holding back a trailing
// partial UTF-8 sequence until the rest of it arrives.
func readUTF8Chunks(r io.Reader, fn func(string)) error {
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completePrefix(pending)
			if cut > 0 {
				fn(string(pending[:cut]))
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if err == io.EOF {
			if len(pending) > 0 {
				fn(string(pending))
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// completePrefix returns the length of b without a trailing incomplete rune.
func completePrefix(b []byte) int {
	// A rune is at most UTFMax bytes, so only the tail needs checking.
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
