package websocket

import (
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

// Handler serves one chat turn per connection: a JSON request frame in, one
// text frame per chunk out, then a close frame.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(c.Request().Context(), conn)
	defer client.Close()
	logger := log.WithCtx(client.Context())

	var req domain.ChatRequest
	if err := client.ReadRequest(&req); err != nil {
		logger.Info("invalid chat request frame", zap.Error(err))
		client.Finish(websocket.CloseInvalidFramePayloadData, "invalid request: "+err.Error())
		return nil
	}
	if err := s.svc.Validate(req); err != nil {
		logger.Info("chat request rejected", zap.Error(err))
		client.Finish(websocket.CloseInvalidFramePayloadData, err.Error())
		return nil
	}

	client.Run()
	s.svc.Stream(client.Context(), req, &frameSink{client: client})
	return nil
}

// frameSink sends every chunk as its own text frame.
type frameSink struct {
	client *Client
}

func (s *frameSink) Write(chunk string) error {
	return s.client.SendText([]byte(chunk))
}

func (s *frameSink) Close() error {
	s.client.Finish(websocket.CloseNormalClosure, "")
	return nil
}
