package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

// ToolService gates the file and shell executors. Checks run in a fixed order:
// deployment switch, request shape, containment, capability flag.
type ToolService struct {
	reader   domain.FileReader
	runner   domain.ShellRunner
	disabled bool
	workDir  string
}

func NewToolService(reader domain.FileReader, runner domain.ShellRunner, disabled bool, workDir string) *ToolService {
	return &ToolService{
		reader:   reader,
		runner:   runner,
		disabled: disabled,
		workDir:  workDir,
	}
}

func (s *ToolService) Enabled() bool {
	return !s.disabled
}

func (s *ToolService) ReadFile(ctx context.Context, req domain.FileRequest) (domain.ToolResult, error) {
	if s.disabled {
		return domain.ToolResult{}, domain.Disabled("file reading is disabled in this deployment")
	}
	if req.Path == nil || req.AllowedRoot == nil {
		return domain.ToolResult{}, domain.ValidationError("filepath and allowedRoot must be strings")
	}

	decision := domain.Admit(*req.Path, *req.AllowedRoot, s.workDir)
	logger := log.WithCtx(ctx).With(
		zap.String("path", decision.ResolvedPath),
		zap.String("root", decision.ResolvedRoot))
	if !decision.Admitted {
		logger.Warn("file read denied: outside allowed root")
		return domain.ToolResult{}, domain.AccessDenied("path %s is outside the allowed root %s", decision.ResolvedPath, decision.ResolvedRoot)
	}
	if !req.AllowFileRead {
		return domain.ToolResult{}, domain.Disabled("file reading is not enabled")
	}

	logger.Info("reading path")
	return s.reader.Read(ctx, decision.ResolvedPath)
}

func (s *ToolService) RunShell(ctx context.Context, req domain.ShellRequest) (domain.ToolResult, error) {
	if s.disabled {
		return domain.ToolResult{}, domain.Disabled("shell is disabled in this deployment")
	}
	if req.Cmd == nil || req.AllowedRoot == nil {
		return domain.ToolResult{}, domain.ValidationError("cmd and allowedRoot must be strings")
	}
	if strings.TrimSpace(*req.Cmd) == "" {
		return domain.ToolResult{}, domain.ValidationError("cmd must not be empty")
	}

	// Without a cwd the command runs in the root itself.
	cwd := req.Cwd
	if strings.TrimSpace(cwd) == "" {
		cwd = *req.AllowedRoot
	}
	decision := domain.Admit(cwd, *req.AllowedRoot, s.workDir)
	logger := log.WithCtx(ctx).With(
		zap.String("cwd", decision.ResolvedPath),
		zap.String("root", decision.ResolvedRoot))
	if !decision.Admitted {
		logger.Warn("shell denied: cwd outside allowed root")
		return domain.ToolResult{}, domain.AccessDenied("cwd %s is outside the allowed root %s", decision.ResolvedPath, decision.ResolvedRoot)
	}
	if !req.AllowShell {
		return domain.ToolResult{}, domain.Disabled("shell is not enabled")
	}

	logger.Info("running command", zap.String("cmd", *req.Cmd))
	return s.runner.Run(ctx, *req.Cmd, decision.ResolvedPath)
}
