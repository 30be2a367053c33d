package filetool

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

const (
	// DefaultMaxBytes bounds how much of a file is returned.
	DefaultMaxBytes = 2 << 20
	sniffLen        = 8 << 10
)

// Reader reads text files and lists directories. It trusts that the caller
// already admitted the path.
type Reader struct {
	MaxBytes int64
}

func NewReader() *Reader {
	return &Reader{MaxBytes: DefaultMaxBytes}
}

func (r *Reader) Read(ctx context.Context, path string) (domain.ToolResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ToolResult{}, domain.NotFound(err, "no such file or directory: %s", path)
		}
		return domain.ToolResult{}, err
	}

	if info.IsDir() {
		return r.list(ctx, path)
	}
	if !info.Mode().IsRegular() {
		return domain.ToolResult{}, domain.Unsupported("not a regular file: %s", path)
	}
	return r.readFile(ctx, path)
}

func (r *Reader) list(ctx context.Context, path string) (domain.ToolResult, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return domain.ToolResult{}, err
	}

	result := domain.ToolResult{
		Kind:    domain.ToolDirectory,
		Entries: make([]domain.DirEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		kind := "file"
		if entry.IsDir() {
			kind = "dir"
		}
		result.Entries = append(result.Entries, domain.DirEntry{Name: entry.Name(), Type: kind})
	}

	log.WithCtx(ctx).Debug("listed directory", zap.String("path", path), zap.Int("entries", len(result.Entries)))
	return result, nil
}

func (r *Reader) readFile(ctx context.Context, path string) (domain.ToolResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ToolResult{}, err
	}
	defer f.Close()

	limit := r.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	// One extra byte tells us whether the file was cut.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return domain.ToolResult{}, err
	}
	truncated := int64(len(data)) > limit
	if truncated {
		data = trimToRuneBoundary(data[:limit])
	}

	if !looksLikeText(data) {
		return domain.ToolResult{}, domain.Unsupported("binary content is not supported: %s", path)
	}

	log.WithCtx(ctx).Debug("read file",
		zap.String("path", path),
		zap.Int("bytes", len(data)),
		zap.Bool("truncated", truncated))

	return domain.ToolResult{
		Kind:      domain.ToolFile,
		Content:   string(data),
		Truncated: truncated,
	}, nil
}

// looksLikeText inspects the leading bytes: a NUL byte or an invalid UTF-8
// sequence marks the content as binary.
func looksLikeText(data []byte) bool {
	head := data
	if len(head) > sniffLen {
		head = trimToRuneBoundary(head[:sniffLen])
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	return utf8.Valid(head)
}

// trimToRuneBoundary drops a trailing partial UTF-8 sequence left by a byte cut.
func trimToRuneBoundary(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size > 1 {
			return b
		}
		if !utf8.RuneStart(b[len(b)-1]) {
			b = b[:len(b)-1]
			continue
		}
		// A lone lead byte.
		return b[:len(b)-1]
	}
	return b
}
