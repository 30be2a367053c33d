package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

// ChunkSink receives the relayed text. Close is called exactly once per request.
type ChunkSink interface {
	Write(chunk string) error
	Close() error
}

// Outcome reports how a request ended.
type Outcome struct {
	State  domain.RequestState
	Chunks int
	Err    error
}

type ChatService struct {
	adapters map[domain.Provider]domain.Llm
}

func NewChatService(adapters map[domain.Provider]domain.Llm) *ChatService {
	return &ChatService{adapters: adapters}
}

// Validate performs every check that must pass before a response is committed.
func (s *ChatService) Validate(req domain.ChatRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, ok := s.adapters[req.Settings.Provider]; !ok {
		return domain.ValidationError("no adapter registered for provider %q", req.Settings.Provider)
	}
	return nil
}

// Stream relays the provider's chunks into sink in arrival order. Provider
// failures are appended in-band; cancellation ends the output silently.
func (s *ChatService) Stream(ctx context.Context, req domain.ChatRequest, sink ChunkSink) (out Outcome) {
	ctx = log.ContextWithProvider(ctx, string(req.Settings.Provider), req.Settings.Model)
	logger := log.WithCtx(ctx)

	defer func() {
		if err := sink.Close(); err != nil {
			logger.Debug("closing chat sink", zap.Error(err))
		}
		logger.Info("chat request finished",
			zap.String("state", string(out.State)),
			zap.Int("chunks", out.Chunks),
			zap.Error(out.Err))
	}()

	if err := s.Validate(req); err != nil {
		return Outcome{State: domain.StateFailed, Err: err}
	}

	chunks := 0
	defer func() {
		if r := recover(); r != nil {
			err := domain.ProviderError(fmt.Errorf("panic: %v", r), "provider adapter crashed: %v", r)
			logger.Error("recovered from adapter panic", zap.Any("panic", r), zap.Stack("stack"))
			out = s.fail(ctx, sink, chunks, err)
		}
	}()

	stream, err := s.adapters[req.Settings.Provider].StreamChat(ctx, req.Messages, req.Settings)
	if err != nil {
		return s.fail(ctx, sink, chunks, err)
	}
	defer stream.Close()

	for stream.Next() {
		if err := sink.Write(stream.Chunk()); err != nil {
			logger.Info("client went away mid-stream", zap.Error(err))
			return Outcome{State: domain.StateCancelled, Chunks: chunks, Err: err}
		}
		chunks++
	}
	if err := stream.Err(); err != nil {
		return s.fail(ctx, sink, chunks, err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{State: domain.StateCancelled, Chunks: chunks, Err: err}
	}
	return Outcome{State: domain.StateCompleted, Chunks: chunks}
}

// fail appends the error notice unless the request was cancelled.
func (s *ChatService) fail(ctx context.Context, sink ChunkSink, chunks int, err error) Outcome {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return Outcome{State: domain.StateCancelled, Chunks: chunks, Err: err}
	}

	log.WithCtx(ctx).Warn("provider stream failed", zap.Error(err))
	if werr := sink.Write(ErrorNotice(err)); werr != nil {
		return Outcome{State: domain.StateCancelled, Chunks: chunks, Err: werr}
	}
	return Outcome{State: domain.StateFailed, Chunks: chunks, Err: err}
}

// ErrorNotice is the trailing text that reports a failure inside a stream.
func ErrorNotice(err error) string {
	return "\n[error] " + err.Error()
}
