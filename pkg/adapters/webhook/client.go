// Package webhook delivers outbound messages to the messaging gateway.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/appsail/convo/internal/logging"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// ErrNoTarget is returned when no endpoint is configured for a flow and mode.
var ErrNoTarget = errors.New("no delivery target")

// Target is an endpoint plus the headers that authenticate against it.
type Target struct {
	Endpoint string            `mapstructure:"endpoint" yaml:"endpoint"`
	Headers  map[string]string `mapstructure:"headers" yaml:"headers"`
}

// Targets maps a deployment mode to its target.
type Targets map[ports.Mode]Target

// HTTPStatusError captures non-2xx gateway responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("webhook: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client POSTs outbound messages as JSON.
type Client struct {
	http     *http.Client
	defaults Targets
	flows    map[domain.FlowName]Targets
	logger   *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithFlowTargets sets targets used only for one flow. Modes it lacks fall back to the defaults.
func WithFlowTargets(flow domain.FlowName, t Targets) Option {
	return func(cl *Client) {
		cl.flows[flow] = t
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a Client with default targets.
func NewClient(defaults Targets, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		defaults: defaults,
		flows:    make(map[domain.FlowName]Targets),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the target for flow and mode.
func (c *Client) Resolve(flow domain.FlowName, mode ports.Mode) (Target, error) {
	if t, ok := c.flows[flow][mode]; ok && t.Endpoint != "" {
		return t, nil
	}
	if t, ok := c.defaults[mode]; ok && t.Endpoint != "" {
		return t, nil
	}
	return Target{}, fmt.Errorf("%w for flow %s in mode %s", ErrNoTarget, flow, mode)
}

// CheckTarget implements ports.TargetChecker.
func (c *Client) CheckTarget(flow domain.FlowName, mode ports.Mode) error {
	_, err := c.Resolve(flow, mode)
	return err
}

// Send implements ports.Sender.
func (c *Client) Send(ctx context.Context, mode ports.Mode, flow domain.FlowName, msg *domain.OutboundMessage) error {
	target, err := c.Resolve(flow, mode)
	if err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post %s: %w", target.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPStatusError{StatusCode: resp.StatusCode, URL: target.Endpoint, Body: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("message delivered", "flow", flow, "mode", mode, "to", msg.To, "content_type", msg.ContentType, "status", resp.StatusCode)
	return nil
}
