// Package gateway provides the single outbound request pipeline shared by
// every workflow.
//
// Flow, per call:
//  1. Resolve the endpoint path against the base target (fixed at startup)
//  2. Attach the bearer token if the session store holds one
//  3. Issue the request under the caller's timeout (default or override)
//  4. Classify the result into the outcome taxonomy
//  5. On Unauthorized, clear the session so stale credentials never linger
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anwrG-p/EPL-Predictor/internal/config"
	"github.com/anwrG-p/EPL-Predictor/internal/logging"
	"github.com/anwrG-p/EPL-Predictor/internal/metrics"
	"github.com/anwrG-p/EPL-Predictor/internal/session"
	"github.com/anwrG-p/EPL-Predictor/internal/traces"
)

// maxResponseBytes caps how much of a response body we buffer.
const maxResponseBytes = 4 << 20

// Client is the configured request pipeline. All base-target resolution,
// credential injection, and timeout policy lives here; call sites never
// build URLs or read status codes.
type Client struct {
	base     *url.URL
	http     *http.Client
	sessions session.Store
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTransport sets the underlying round tripper. Used in tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// New builds the pipeline from configuration. The base target is resolved
// exactly once here: an absolute API_BASE_URL is used as-is, a relative one
// is joined to APP_ORIGIN. Both deployment modes look identical to callers.
func New(cfg *config.Config, store session.Store, opts ...Option) (*Client, error) {
	base, err := resolveBase(cfg.BaseURL, cfg.AppOrigin)
	if err != nil {
		return nil, err
	}

	c := &Client{
		base:     base,
		sessions: store,
		timeout:  cfg.RequestTimeout,
		logger:   slog.Default(),
		// Timeouts are enforced per call via context, never on the
		// http.Client, so the retrain override can exceed the default.
		http: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func resolveBase(baseURL, appOrigin string) (*url.URL, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid base URL: %w", err)
	}
	if u.IsAbs() {
		return u, nil
	}

	origin, err := url.Parse(appOrigin)
	if err != nil || !origin.IsAbs() {
		return nil, fmt.Errorf("gateway: relative base %q needs an absolute app origin", baseURL)
	}
	return origin.JoinPath(u.Path), nil
}

// Resolve absolutizes a server-relative resource path (e.g. the SHAP
// artifact URL) against the backend origin. Absolute locators pass through.
func (c *Client) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

// BaseURL returns the resolved base target.
func (c *Client) BaseURL() string { return c.base.String() }

// CallOption adjusts a single call.
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
	query   url.Values
}

// WithTimeout overrides the default timeout for one call. The retrain
// invocation uses this; it addresses a long-running backend job, not
// fixed infrastructure latency.
func WithTimeout(d time.Duration) CallOption {
	return func(cc *callConfig) { cc.timeout = d }
}

// WithQuery sets the query string for one call.
func WithQuery(v url.Values) CallOption {
	return func(cc *callConfig) { cc.query = v }
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...CallOption) Outcome {
	return c.do(ctx, http.MethodGet, path, nil, "", opts...)
}

// PostJSON issues a POST request with a JSON body. A nil payload sends an
// empty body.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, opts ...CallOption) Outcome {
	var body io.Reader
	contentType := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Outcome{Kind: KindNetworkFailure, Err: fmt.Errorf("gateway: encode request: %w", err)}
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, http.MethodPost, path, body, contentType, opts...)
}

// PostForm issues a POST request with a form-encoded body. The token
// exchange endpoint requires this encoding.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, opts ...CallOption) Outcome {
	body := strings.NewReader(form.Encode())
	return c.do(ctx, http.MethodPost, path, body, "application/x-www-form-urlencoded", opts...)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, opts ...CallOption) Outcome {
	cc := callConfig{timeout: c.timeout}
	for _, opt := range opts {
		opt(&cc)
	}

	ctx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	reqID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, reqID)
	ctx = logging.WithLogger(ctx, c.logger)

	ctx, span := traces.StartSpan(ctx, "gateway.call", traces.Endpoint(path))
	defer span.End()

	u := c.base.JoinPath(path)
	if cc.query != nil {
		u.RawQuery = cc.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return Outcome{Kind: KindNetworkFailure, Err: fmt.Errorf("gateway: build request: %w", err)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", reqID)

	// Re-read the session on every call; never act on a cached copy.
	sess := c.sessions.Get()
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
		metrics.SessionActive.Set(1)
	} else {
		metrics.SessionActive.Set(0)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)

	var out Outcome
	if err != nil {
		out = classifyErr(err)
	} else {
		b, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		if readErr != nil {
			out = classifyErr(readErr)
		} else {
			out = classify(resp.StatusCode, b)
		}
	}

	metrics.CallsTotal.WithLabelValues(path, out.Kind.String()).Inc()
	metrics.CallDuration.WithLabelValues(path).Observe(elapsed.Seconds())
	span.SetAttributes(traces.OutcomeKind(out.Kind.String()), traces.HTTPStatus(out.Status))

	log := logging.L(ctx).With(
		"method", method,
		"endpoint", path,
		"kind", out.Kind.String(),
		"status", out.Status,
		"duration_ms", elapsed.Milliseconds(),
	)

	if out.Kind == KindUnauthorized {
		// Token invalidated server-side. Drop it immediately so no
		// later call runs with a credential the server rejects.
		if clearErr := c.sessions.Clear(); clearErr != nil {
			log.Error("failed to clear invalidated session", "error", clearErr)
		} else {
			metrics.SessionActive.Set(0)
			metrics.SessionClearsTotal.WithLabelValues("unauthorized").Inc()
			log.Warn("session cleared after unauthorized response")
		}
		return out
	}

	if out.Success() {
		log.Debug("gateway call completed")
	} else {
		log.Warn("gateway call failed", "error", out.Err)
	}
	return out
}
