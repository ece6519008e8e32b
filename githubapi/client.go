// Package githubapi is a small client for the GitHub REST endpoints the archive
// needs: the repository contents API (read, create-or-replace, delete one file)
// and the git trees API for listing archived paths. It implements store.Store.
package githubapi

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

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ua-community/phenomena/store"
	"github.com/ua-community/phenomena/telemetry"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

const apiVersion = "2022-11-28"

// Client talks to one repository. The zero HTTPClient falls back to
// http.DefaultClient, which is only useful against unauthenticated test servers.
type Client struct {
	Owner      string
	Repo       string
	BaseURL    string
	HTTPClient *http.Client
	// Limiter, when set, caps the outbound request rate.
	Limiter *rate.Limiter
}

var _ store.Store = (*Client)(nil)

// New returns a Client authenticating with a static bearer token.
func New(ctx context.Context, token, owner, repo string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = 30 * time.Second
	return &Client{Owner: owner, Repo: repo, BaseURL: DefaultBaseURL, HTTPClient: hc}
}

// WithRateLimit installs a limiter allowing rps requests per second. rps <= 0 disables it.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps <= 0 {
		c.Limiter = nil
		return c
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) repoURL(parts ...string) string {
	u := c.base() + "/repos/" + url.PathEscape(c.Owner) + "/" + url.PathEscape(c.Repo)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

// escapePath escapes each segment of a repository path but keeps the separators.
func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// do sends one request and returns the response with the body still open.
// Transport failures are wrapped with store.ErrNetwork.
func (c *Client) do(ctx context.Context, op, method, target string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit wait: %w", op, err)
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "githubapi", "github."+op,
		attribute.String("http.method", method),
		attribute.String("github.repo", c.Owner+"/"+c.Repo),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.http().Do(req.WithContext(ctx))
	telemetry.ObserveStoreRequest(op, time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%s: %w: %v", op, store.ErrNetwork, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

// apiError turns a non-success response into an error carrying GitHub's message.
func apiError(op string, resp *http.Response, sentinel error) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var msg struct {
		Message string `json:"message"`
	}
	detail := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &msg) == nil && msg.Message != "" {
		detail = msg.Message
	}
	if sentinel != nil {
		return fmt.Errorf("%s: %w: %s: %s", op, sentinel, resp.Status, detail)
	}
	return fmt.Errorf("%s: github request failed: %s: %s", op, resp.Status, detail)
}
