package llm

import (
	"net"
	"net/http"
	"time"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/domain"
)

// NewHTTPClient returns the client shared by every upstream request. There is
// no overall timeout because a generation may legitimately stream for minutes;
// only the wait for response headers is bounded.
func NewHTTPClient(headerTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: headerTimeout,
		},
	}
}

// NewAdapters maps every supported provider to its stream adapter.
func NewAdapters(httpClient *http.Client, openAIKey string) map[domain.Provider]domain.Llm {
	return map[domain.Provider]domain.Llm{
		domain.ProviderOllama:   NewOllamaClient(httpClient),
		domain.ProviderLMStudio: NewOpenAIClient(httpClient, openAIKey),
	}
}
