package client

import (
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vladislav-moscow/Social/pkg/config"
	"github.com/vladislav-moscow/Social/pkg/logger"
)

const userAgent = "Social-Chat/0.1.0"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	httpClient *resty.Client
	mu         sync.Mutex
)

// New builds a client for baseURL. Requests are traced through otelhttp.
func New(baseURL string) *resty.Client {
	c := resty.New()
	c.SetTransport(otelhttp.NewTransport(http.DefaultTransport))
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	c.SetBaseURL(baseURL)
	c.SetHeader("User-Agent", userAgent)
	c.SetHeader("Accept", "application/json")

	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug("HTTP Request", "method", req.Method, "url", req.URL)
		return nil
	})
	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response",
			"status", resp.StatusCode(),
			"url", resp.Request.URL,
			"elapsed", resp.Time())
		return nil
	})
	return c
}

// Init builds the shared client from api.base_url and api.timeout.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	initLocked()
}

func initLocked() {
	httpClient = New(config.GetString("api.base_url"))
	httpClient.SetTimeout(config.RequestTimeout())
}

// GetClient returns the shared client, creating it on first use.
func GetClient() *resty.Client {
	mu.Lock()
	defer mu.Unlock()
	if httpClient == nil {
		initLocked()
	}
	return httpClient
}
