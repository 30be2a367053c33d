package llm

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

// OllamaClient speaks the local-server NDJSON chat protocol.
type OllamaClient struct {
	httpClient *http.Client
}

func NewOllamaClient(httpClient *http.Client) *OllamaClient {
	return &OllamaClient{httpClient: httpClient}
}

func (o *OllamaClient) StreamChat(ctx context.Context, conversation []domain.ChatMessage, settings domain.Settings) (domain.ChatStream, error) {
	if err := domain.ValidateConversation(conversation); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/"))
	if err != nil {
		return nil, domain.ValidationError("settings.baseUrl is not a valid URL: %v", err)
	}
	status := &statusTransport{base: o.transport()}
	httpClient := http.Client{Transport: status}
	if o.httpClient != nil {
		httpClient = *o.httpClient
		httpClient.Transport = status
	}
	client := api.NewClient(base, &httpClient)

	messages := domain.WithSystemPrompt(conversation, settings.System)
	stream := true
	req := &api.ChatRequest{
		Model:    settings.Model,
		Messages: make([]api.Message, 0, len(messages)),
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature":       settings.Temperature,
			"top_p":             settings.TopP,
			"presence_penalty":  settings.PresencePenalty,
			"frequency_penalty": settings.FrequencyPenalty,
			"num_predict":       settings.MaxTokens,
		},
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, api.Message{Role: string(msg.Role), Content: msg.Content})
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &ollamaStream{
		ctx:    ctx,
		cancel: cancel,
		chunks: make(chan string),
		errc:   make(chan error, 1),
		status: status,
	}

	log.WithCtx(ctx).Debug("opening ollama stream",
		zap.String("base_url", base.String()),
		zap.Int("messages", len(req.Messages)))

	go s.run(client, req)
	return s, nil
}

// ollamaStream turns the callback-driven client into a pull-based stream.
// The producer goroutine blocks on an unbuffered channel, so nothing is read
// from upstream ahead of the consumer.
type ollamaStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	chunks chan string
	errc   chan error
	status *statusTransport

	chunk     string
	err       error
	done      bool
	closeOnce sync.Once
}

func (s *ollamaStream) run(client *api.Client, req *api.ChatRequest) {
	completed := false
	err := client.Chat(s.ctx, req, func(resp api.ChatResponse) error {
		if resp.Done {
			completed = true
		}
		if resp.Message.Content == "" {
			return nil
		}
		select {
		case s.chunks <- resp.Message.Content:
			return nil
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	})
	if err == nil && !completed {
		err = errors.New("stream ended before the final frame")
	}
	s.errc <- err
	close(s.chunks)
}

func (s *ollamaStream) Next() bool {
	if s.done {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.finish(err)
		return false
	}

	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			s.finish(<-s.errc)
			return false
		}
		// Cancellation may have raced with the receive.
		if err := s.ctx.Err(); err != nil {
			s.finish(err)
			return false
		}
		s.chunk = chunk
		return true
	case <-s.ctx.Done():
		s.finish(s.ctx.Err())
		return false
	}
}

func (s *ollamaStream) finish(err error) {
	s.done = true
	s.chunk = ""
	switch {
	case s.ctx.Err() != nil:
		s.err = s.ctx.Err()
	case err != nil:
		s.err = ollamaError(err, s.status.code())
	}
}

func (s *ollamaStream) Chunk() string {
	return s.chunk
}

func (s *ollamaStream) Err() error {
	return s.err
}

// Close cancels the upstream request and waits for the producer to exit.
func (s *ollamaStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.chunks {
		}
	})
	return nil
}

func (o *OllamaClient) transport() http.RoundTripper {
	if o.httpClient != nil && o.httpClient.Transport != nil {
		return o.httpClient.Transport
	}
	return http.DefaultTransport
}

// statusTransport remembers the upstream status code. The ollama client turns
// an error body into a plain error and drops the status.
type statusTransport struct {
	base   http.RoundTripper
	status atomic.Int32
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		t.status.Store(int32(resp.StatusCode))
	}
	return resp, err
}

func (t *statusTransport) code() int {
	return int(t.status.Load())
}

func ollamaError(err error, status int) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.ErrorMessage
		if msg == "" {
			msg = statusErr.Status
		}
		return domain.ProviderError(err, "ollama returned status %d: %s", statusErr.StatusCode, msg)
	}
	if status >= http.StatusBadRequest {
		return domain.ProviderError(err, "ollama returned status %d: %v", status, err)
	}
	return domain.ProviderError(err, "ollama request failed: %v", err)
}
