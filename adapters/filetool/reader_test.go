package filetool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
)

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readme.txt")
	content := "# Project\n\nLine two with ünïcode.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res, err := NewReader().Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, domain.ToolFile, res.Kind)
	assert.Equal(t, content, res.Content)
	assert.False(t, res.Truncated)
}

func TestReadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	res, err := NewReader().Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "", res.Content)
}

func TestReadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "nested.txt"), []byte("x"), 0o644))

	res, err := NewReader().Read(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, domain.ToolDirectory, res.Kind)
	assert.Equal(t, []domain.DirEntry{
		{Name: "a", Type: "dir"},
		{Name: "b.go", Type: "file"},
	}, res.Entries)
}

func TestReadMissing(t *testing.T) {
	_, err := NewReader().Read(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestReadBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00}, 0o644))

	_, err := NewReader().Read(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, domain.KindUnsupported, domain.KindOf(err))
}

func TestReadTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world, and more"), 0o644))

	res, err := (&Reader{MaxBytes: 10}).Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello worl", res.Content)
	assert.True(t, res.Truncated)
}

func TestReadTruncatesOnRuneBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accents.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("é", 5)), 0o644))

	res, err := (&Reader{MaxBytes: 5}).Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "éé", res.Content)
	assert.True(t, res.Truncated)
}

func TestTrimToRuneBoundary(t *testing.T) {
	euro := []byte("€") // 3 bytes
	assert.Equal(t, []byte("a"), trimToRuneBoundary(append([]byte("a"), euro[:1]...)))
	assert.Equal(t, []byte("a"), trimToRuneBoundary(append([]byte("a"), euro[:2]...)))
	assert.Equal(t, []byte("a€"), trimToRuneBoundary([]byte("a€")))
	assert.Equal(t, []byte("abc"), trimToRuneBoundary([]byte("abc")))
}
