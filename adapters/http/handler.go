package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/usecase"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

type ErrorResponse struct {
	Error string           `json:"error"`
	Code  domain.ErrorKind `json:"code"`
}

type FileResponse struct {
	Type      domain.ToolKind `json:"type"`
	Content   string          `json:"content"`
	Truncated bool            `json:"truncated,omitempty"`
}

type DirectoryResponse struct {
	Type    domain.ToolKind   `json:"type"`
	Entries []domain.DirEntry `json:"entries"`
}

type ShellResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

type ShellErrorResponse struct {
	ErrorResponse
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	ExitCode  int    `json:"exitCode"`
	Truncated bool   `json:"truncated,omitempty"`
}

type Handler struct {
	chat  *usecase.ChatService
	tools *usecase.ToolService
}

func NewHandler(chat *usecase.ChatService, tools *usecase.ToolService) *Handler {
	return &Handler{chat: chat, tools: tools}
}

// Chat streams the assistant reply as raw text. Errors found before the first
// byte are returned as JSON; later ones are appended to the body.
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := h.chat.Validate(req); err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ctx := c.Request().Context()
	h.chat.Stream(ctx, req, &responseSink{ctx: ctx, res: res})
	return nil
}

// responseSink writes each chunk straight through to the client.
type responseSink struct {
	ctx    context.Context
	res    *echo.Response
	mu     sync.Mutex
	closed bool
}

func (s *responseSink) Write(chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("response already closed")
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if _, err := s.res.Write([]byte(chunk)); err != nil {
		return err
	}
	s.res.Flush()
	return nil
}

// Close marks the sink done; net/http ends the body when the handler returns.
func (s *responseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (h *Handler) ReadFile(c echo.Context) error {
	if !h.tools.Enabled() {
		return domain.Disabled("file reading is disabled in this deployment")
	}

	var req domain.FileRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	result, err := h.tools.ReadFile(c.Request().Context(), req)
	if err != nil {
		return err
	}

	if result.Kind == domain.ToolDirectory {
		entries := result.Entries
		if entries == nil {
			entries = []domain.DirEntry{}
		}
		return c.JSON(http.StatusOK, DirectoryResponse{Type: result.Kind, Entries: entries})
	}
	return c.JSON(http.StatusOK, FileResponse{
		Type:      result.Kind,
		Content:   result.Content,
		Truncated: result.Truncated,
	})
}

func (h *Handler) RunShell(c echo.Context) error {
	if !h.tools.Enabled() {
		return domain.Disabled("shell is disabled in this deployment")
	}

	var req domain.ShellRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	result, err := h.tools.RunShell(c.Request().Context(), req)
	if err != nil {
		// Execution problems still carry whatever the process printed.
		if result.Kind == domain.ToolOutput {
			return c.JSON(StatusFor(err), ShellErrorResponse{
				ErrorResponse: newErrorResponse(err),
				Stdout:        result.Stdout,
				Stderr:        result.Stderr,
				ExitCode:      result.ExitCode,
				Truncated:     result.Truncated,
			})
		}
		return err
	}

	return c.JSON(http.StatusOK, ShellResponse{Stdout: result.Stdout, Stderr: result.Stderr})
}

// Health check endpoint
func (h *Handler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"timestamp":    time.Now().UTC(),
		"service":      "agentic-chat",
		"toolsEnabled": h.tools.Enabled(),
	})
}

func (h *Handler) Providers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providers": domain.SupportedProviders(),
		"defaults":  domain.DefaultSettings(),
	})
}

// StatusFor maps an error kind to the HTTP status used before a body is committed.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAccessDenied, domain.KindDisabled:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func newErrorResponse(err error) ErrorResponse {
	return ErrorResponse{Error: err.Error(), Code: domain.KindOf(err)}
}

func bindError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return domain.ValidationError("invalid request body: %v", he.Message)
	}
	return domain.ValidationError("invalid request body: %v", err)
}

// ErrorHandler renders every error as {"error", "code"}.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := StatusFor(err)
	body := newErrorResponse(err)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		body = ErrorResponse{
			Error: fmt.Sprint(he.Message),
			Code:  domain.ErrorKind(strings.ReplaceAll(http.StatusText(he.Code), " ", "")),
		}
	}

	logger := log.WithCtx(c.Request().Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.Int("status", status), zap.String("code", string(body.Code)), zap.String("error", body.Error))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.Error("writing error response", zap.Error(err))
	}
}

// RequestContext copies the request id assigned by the RequestID middleware
// into the request context so every log line carries it.
func RequestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(log.ContextWithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

// Register mounts the API routes on g.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/health", h.HealthCheck)
	g.GET("/providers", h.Providers)
	g.POST("/chat", h.Chat)
	g.POST("/tools/file", h.ReadFile)
	g.POST("/tools/shell", h.RunShell)
}
