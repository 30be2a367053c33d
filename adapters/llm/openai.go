package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

// OpenAIClient speaks the OpenAI-compatible SSE chat protocol served by LM Studio.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
}

// NewOpenAIClient builds the adapter. Local servers ignore the key but the
// protocol requires one to be sent.
func NewOpenAIClient(httpClient *http.Client, apiKey string) *OpenAIClient {
	if strings.TrimSpace(apiKey) == "" {
		apiKey = "lm-studio"
	}
	return &OpenAIClient{httpClient: httpClient, apiKey: apiKey}
}

func (o *OpenAIClient) StreamChat(ctx context.Context, conversation []domain.ChatMessage, settings domain.Settings) (domain.ChatStream, error) {
	if err := domain.ValidateConversation(conversation); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	baseURL := openAIBaseURL(settings.BaseURL)
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(o.apiKey),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(0),
	)

	messages := domain.WithSystemPrompt(conversation, settings.System)
	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(settings.Model),
		Messages:         make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature:      openai.Float(settings.Temperature),
		TopP:             openai.Float(settings.TopP),
		PresencePenalty:  openai.Float(settings.PresencePenalty),
		FrequencyPenalty: openai.Float(settings.FrequencyPenalty),
		MaxTokens:        openai.Int(int64(settings.MaxTokens)),
	}
	for _, msg := range messages {
		params.Messages = append(params.Messages, toChatMessageParam(msg))
	}

	log.WithCtx(ctx).Debug("opening openai-compatible stream",
		zap.String("base_url", baseURL),
		zap.Int("messages", len(params.Messages)))

	streamCtx, cancel := context.WithCancel(ctx)
	stream := client.Chat.Completions.NewStreaming(streamCtx, params)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		cancel()
		// Only the caller's context says whether this was a cancellation.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, openAIError(err)
	}

	return &openAIStream{ctx: streamCtx, cancel: cancel, stream: stream}, nil
}

func toChatMessageParam(msg domain.ChatMessage) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case domain.SystemRole:
		return openai.SystemMessage(msg.Content)
	case domain.AssistantRole:
		return openai.AssistantMessage(msg.Content)
	default:
		return openai.UserMessage(msg.Content)
	}
}

// openAIBaseURL makes sure the URL ends with the /v1 API prefix, which users
// frequently leave out.
func openAIBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}

type openAIStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[openai.ChatCompletionChunk]

	chunk     string
	done      bool
	closeOnce sync.Once
}

func (s *openAIStream) Next() bool {
	s.chunk = ""
	if s.done || s.ctx.Err() != nil {
		s.done = true
		return false
	}
	for s.stream.Next() {
		if s.ctx.Err() != nil {
			break
		}
		current := s.stream.Current()
		if len(current.Choices) == 0 || current.Choices[0].Delta.Content == "" {
			continue
		}
		s.chunk = current.Choices[0].Delta.Content
		return true
	}
	s.done = true
	return false
}

func (s *openAIStream) Chunk() string {
	return s.chunk
}

func (s *openAIStream) Err() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if err := s.stream.Err(); err != nil {
		return openAIError(err)
	}
	return nil
}

func (s *openAIStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.stream.Close()
	})
	return err
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return domain.ProviderError(err, "openai-compatible server returned status %d: %s", apiErr.StatusCode, msg)
	}
	return domain.ProviderError(err, "openai-compatible request failed: %v", err)
}
