package shell

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxOutput = 2_000_000
	waitDelay        = 2 * time.Second
)

// Runner executes one shell command per call with a wall-clock timeout and a
// per-stream output cap. The whole process group is killed on timeout,
// overflow or cancellation.
type Runner struct {
	Timeout   time.Duration
	MaxOutput int
}

func NewRunner() *Runner {
	return &Runner{Timeout: DefaultTimeout, MaxOutput: DefaultMaxOutput}
}

func (r *Runner) Run(ctx context.Context, command, dir string) (domain.ToolResult, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := r.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var overflowed atomic.Bool
	onOverflow := func() {
		if overflowed.CompareAndSwap(false, true) {
			cancel()
		}
	}
	stdout := &cappedBuffer{limit: maxOutput, onOverflow: onOverflow}
	stderr := &cappedBuffer{limit: maxOutput, onOverflow: onOverflow}

	name, args := shellCommand(command)
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	cmd.Env = sanitizeEnvironment(os.Environ())
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	logger := log.WithCtx(ctx).With(zap.String("dir", dir))
	start := time.Now()
	err := cmd.Run()
	killProcessGroup(cmd)
	elapsed := time.Since(start)

	result := domain.ToolResult{
		Kind:      domain.ToolOutput,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: overflowed.Load(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case result.Truncated:
		logger.Warn("command output exceeded cap", zap.Int("max_output", maxOutput), zap.Duration("elapsed", elapsed))
		return result, domain.ResourceLimit("command output exceeded %d bytes and the process was killed", maxOutput)
	case ctx.Err() != nil:
		logger.Info("command cancelled", zap.Duration("elapsed", elapsed))
		return result, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		logger.Warn("command timed out", zap.Duration("timeout", timeout))
		return result, domain.ResourceLimit("command timed out after %s and the process was killed", timeout)
	case err != nil && !errors.Is(err, exec.ErrWaitDelay):
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Info("command failed", zap.Int("exit_code", result.ExitCode), zap.Duration("elapsed", elapsed))
			return result, domain.ExecutionFailed(err, "command exited with status %d", result.ExitCode)
		}
		logger.Error("command could not start", zap.Error(err))
		return result, domain.ExecutionFailed(err, "running command: %v", err)
	}

	logger.Debug("command finished", zap.Duration("elapsed", elapsed))
	return result, nil
}

// cappedBuffer keeps at most limit bytes and reports the first write past it.
// Writes never fail so the command is stopped by the kill, not by a broken pipe.
type cappedBuffer struct {
	mu         sync.Mutex
	buf        []byte
	limit      int
	onOverflow func()
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - len(b.buf)
	if len(p) > remaining {
		if remaining > 0 {
			b.buf = append(b.buf, p[:remaining]...)
		}
		b.onOverflow()
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// Variables that change how the shell or the dynamic loader behave.
var dangerousEnvVars = map[string]bool{
	"LD_PRELOAD":            true,
	"LD_LIBRARY_PATH":       true,
	"LD_AUDIT":              true,
	"DYLD_INSERT_LIBRARIES": true,
	"DYLD_LIBRARY_PATH":     true,
	"BASH_ENV":              true,
	"ENV":                   true,
	"SHELLOPTS":             true,
	"BASHOPTS":              true,
	"CDPATH":                true,
	"GLOBIGNORE":            true,
	"IFS":                   true,
	"PROMPT_COMMAND":        true,
}

func sanitizeEnvironment(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		idx := strings.IndexByte(kv, '=')
		if idx <= 0 {
			continue
		}
		key := strings.ToUpper(kv[:idx])
		if dangerousEnvVars[key] || strings.HasPrefix(key, "BASH_FUNC_") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
