// Package mediator brokers booking requests between the booking form and a
// provider that describes its service with a request template: it fetches
// the template, fills it in, invokes the provider and reads the answer back.
package mediator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coolbeans/rdgmed/pkg/logger"
	"github.com/coolbeans/rdgmed/pkg/metrics"
	"github.com/coolbeans/rdgmed/pkg/store"
)

// ErrProviderUnavailable is returned when a provider cannot be reached,
// answers with a non-2xx status or sends something that is not a graph.
var ErrProviderUnavailable = errors.New("provider unavailable")

const (
	turtleContentType = "text/turtle"
	maxGraphBytes     = 8 << 20

	templatePath   = "/rdg"
	invocationPath = "/process_rig"
)

// Client talks Turtle to providers over HTTP. Requests are not retried.
type Client struct {
	http     *http.Client
	log      *logger.Logger
	metrics  *metrics.Metrics
	maxBytes int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClientLogger sets the logger provider calls are reported to.
func WithClientLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// WithClientMetrics sets the metrics provider calls are recorded to.
func WithClientMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client whose requests give up after timeout.
func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		http:     &http.Client{Timeout: timeout},
		log:      logger.Nop(),
		maxBytes: maxGraphBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchTemplate downloads the request template of the provider at
// serviceURL.
func (c *Client) FetchTemplate(ctx context.Context, serviceURL string) (*store.Graph, error) {
	return c.fetch(ctx, "fetch_template", endpoint(serviceURL, templatePath))
}

// FetchGraph downloads the graph at url.
func (c *Client) FetchGraph(ctx context.Context, url string) (*store.Graph, error) {
	return c.fetch(ctx, "fetch_graph", url)
}

// SendRIG posts an invocation graph to the provider at serviceURL and
// returns its response graph.
func (c *Client) SendRIG(ctx context.Context, serviceURL string, rig *store.Graph) (*store.Graph, error) {
	url := endpoint(serviceURL, invocationPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(store.SerializeTurtle(rig)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", turtleContentType)
	req.Header.Set("Accept", turtleContentType)
	return c.do("send_rig", req)
}

func (c *Client) fetch(ctx context.Context, operation, url string) (*store.Graph, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", turtleContentType)
	return c.do(operation, req)
}

func (c *Client) do(operation string, req *http.Request) (g *store.Graph, err error) {
	url := req.URL.String()
	start := time.Now()
	defer func() {
		duration := time.Since(start)
		c.log.LogProviderCall(operation, url, duration, err)
		if c.metrics != nil {
			c.metrics.RecordProviderCall(operation, duration, err)
		}
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBytes))
		return nil, fmt.Errorf("%w: %s returned %s", ErrProviderUnavailable, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, url, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: %s: graph larger than %d bytes", ErrProviderUnavailable, url, c.maxBytes)
	}

	g, err = store.ParseTurtle(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, url, err)
	}
	return g, nil
}

// endpoint joins a service base URL and a path without doubling slashes.
func endpoint(serviceURL, path string) string {
	return strings.TrimRight(serviceURL, "/") + path
}
