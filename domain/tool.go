package domain

import "context"

type ToolKind string

const (
	ToolFile      ToolKind = "file"
	ToolDirectory ToolKind = "directory"
	ToolOutput    ToolKind = "output"
)

type DirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "dir" | "file"
}

// ToolResult is produced by one tool invocation and discarded after display.
type ToolResult struct {
	Kind      ToolKind
	Content   string
	Entries   []DirEntry
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// FileReader reads a file or lists a directory. Callers must have admitted the path.
type FileReader interface {
	Read(ctx context.Context, path string) (ToolResult, error)
}

// ShellRunner runs one command in dir. A non-nil error may come with partial output.
type ShellRunner interface {
	Run(ctx context.Context, command, dir string) (ToolResult, error)
}

type FileRequest struct {
	Path          *string `json:"filepath"`
	AllowedRoot   *string `json:"allowedRoot"`
	AllowFileRead bool    `json:"allowFileRead"`
}

type ShellRequest struct {
	Cmd         *string `json:"cmd"`
	Cwd         string  `json:"cwd,omitempty"`
	AllowedRoot *string `json:"allowedRoot"`
	AllowShell  bool    `json:"allowShell"`
}
