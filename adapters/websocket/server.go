package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/usecase"
)

type Server struct {
	upgrader websocket.Upgrader
	svc      *usecase.ChatService
}

// NewServer builds the WebSocket chat transport. An origin list containing
// "*" accepts any origin.
func NewServer(svc *usecase.ChatService, allowedOrigins []string) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		svc: svc,
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, o := range allowed {
			if strings.EqualFold(strings.TrimRight(o, "/"), u.Scheme+"://"+u.Host) {
				return true
			}
		}
		return false
	}
}
