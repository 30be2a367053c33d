package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/adapters/filetool"
	httpadapter "github.com/Design-Arena-Gens/agentic-4bf6c79a/adapters/http"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/adapters/llm"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/adapters/shell"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/adapters/websocket"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/config"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/usecase"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

func main() {
	gotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log.With().Fatal("invalid configuration", zap.Error(err))
	}
	if err := log.Setup(log.Options{
		Debug:      cfg.Debug,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}); err != nil {
		log.With().Fatal("setting up logger", zap.Error(err))
	}
	defer log.Sync()

	adapters := llm.NewAdapters(llm.NewHTTPClient(cfg.UpstreamHeaderTimeout), cfg.OpenAIAPIKey)
	chatSvc := usecase.NewChatService(adapters)
	toolSvc := usecase.NewToolService(filetool.NewReader(), shell.NewRunner(), cfg.DisableLocalTools, cfg.WorkDir)

	handler := httpadapter.NewHandler(chatSvc, toolSvc)
	wsServer := websocket.NewServer(chatSvc, cfg.CORSOrigins)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpadapter.ErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(httpadapter.RequestContext)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithCtx(c.Request().Context()).Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestID,
		},
		ExposeHeaders: []string{echo.HeaderXRequestID},
		MaxAge:        86400,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	api := e.Group("/api")
	handler.Register(api)
	api.GET("/chat/ws", wsServer.Handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.With().Info("starting server",
			zap.String("addr", cfg.Addr),
			zap.Bool("local_tools", toolSvc.Enabled()),
			zap.String("work_dir", cfg.WorkDir),
		)
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.With().Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.With().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.With().Error("graceful shutdown failed", zap.Error(err))
	}
}
