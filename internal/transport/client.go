// Package transport sends command lines to the worker's control endpoint.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mattjoyce/farmctl/internal/log"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/mattjoyce/farmctl/internal/transport Client

// Client sends a single command line and returns the worker's reply text.
type Client interface {
	Send(ctx context.Context, commandLine string) (string, error)
}

const (
	// CredentialHeader carries the endpoint credential.
	CredentialHeader = "Authentication"

	// maxReplyBytes caps a reply body; larger replies are a protocol error.
	maxReplyBytes = 4 << 20

	defaultTimeout = 30 * time.Second
)

// Config holds connection parameters for an HTTP control endpoint.
type Config struct {
	URL        string
	Path       string
	Credential string
	Timeout    time.Duration
}

// envelope is the JSON reply shape used by IPC servers that wrap responses.
type envelope struct {
	Success *bool  `json:"Success"`
	Message string `json:"Message"`
	Result  string `json:"Result"`
}

// HTTPClient implements Client over the worker's HTTP IPC interface.
type HTTPClient struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates a client for the endpoint in cfg.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("endpoint url is empty")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint url scheme must be http or https (got %q)", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &HTTPClient{
		config: cfg,
		http:   &http.Client{},
		logger: log.WithComponent("transport"),
	}, nil
}

// Send transmits commandLine and blocks until a reply arrives, ctx is done,
// or the configured timeout elapses. It never retries.
func (c *HTTPClient) Send(ctx context.Context, commandLine string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	endpoint := c.config.URL + c.config.Path + "?command=" + url.QueryEscape(commandLine)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &Error{Kind: KindUnreachable, Op: "build request", Err: err}
	}
	if c.config.Credential != "" {
		req.Header.Set(CredentialHeader, c.config.Credential)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify("send", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes+1))
	if err != nil {
		return "", classify("read reply", err)
	}
	if len(body) > maxReplyBytes {
		return "", &Error{Kind: KindProtocol, Op: "read reply", Err: fmt.Errorf("reply exceeds %d bytes", maxReplyBytes)}
	}

	c.logger.Debug("reply received",
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &Error{Kind: KindProtocol, Op: "send", Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}

	return decodeReply(resp.Header.Get("Content-Type"), body)
}

// decodeReply strips protocol framing. JSON envelopes are unwrapped; anything
// else is returned verbatim.
func decodeReply(contentType string, body []byte) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/json" {
		return string(body), nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", &Error{Kind: KindProtocol, Op: "decode reply", Err: err}
	}
	if env.Result != "" {
		return env.Result, nil
	}
	if env.Success != nil && !*env.Success && env.Message == "" {
		return "", &Error{Kind: KindProtocol, Op: "decode reply", Err: errors.New("request failed without message")}
	}
	return env.Message, nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindUnreachable, Op: op, Err: err}
}
