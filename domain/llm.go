package domain

import "context"

// Llm abstracts a chat provider speaking one upstream streaming protocol.
type Llm interface {
	// StreamChat opens one upstream connection for the full conversation and
	// returns the chunks as they arrive. The stream is not restartable.
	StreamChat(ctx context.Context, conversation []ChatMessage, settings Settings) (ChatStream, error)
}

// ChatStream is a pull-based, finite sequence of text chunks.
//
// Next blocks until the next chunk is available and reports false once the
// stream is exhausted, failed or cancelled; Err tells which. Close releases the
// upstream connection and is safe to call more than once.
type ChatStream interface {
	Next() bool
	Chunk() string
	Err() error
	Close() error
}

// Speaker hands a finished assistant message to a speech synthesizer.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}
