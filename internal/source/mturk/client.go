package mturk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	gosync "sync"
	"time"

	"github.com/nhle/hitwatch/internal/source"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

// challengeMarkers are lower-case fragments of the sign-in and robot-check
// pages. Task titles can contain the same phrases, so they are only matched
// against bodies that are not the expected queue payload.
var challengeMarkers = []string{
	"/ap/signin",
	"<title>amazon sign-in",
	"<title>amazon sign in",
	"/errors/validatecaptcha",
	"opfcaptcha.amazon.com",
	"enter the characters you see below",
	"type the characters you see in this image",
}

// DetectChallenge reports the first challenge marker found in body.
func DetectChallenge(body []byte) (string, bool) {
	lower := bytes.ToLower(body)
	for _, m := range challengeMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return m, true
		}
	}
	return "", false
}

// challenge returns an *source.AuthChallengeError when body carries a
// challenge marker, or nil.
func challenge(name string, body []byte) error {
	if marker, ok := DetectChallenge(body); ok {
		return &source.AuthChallengeError{Source: name, Marker: marker}
	}
	return nil
}

// Client is a thin HTTP client that reads queue data with the worker's
// existing session cookie. It also remembers the worker ID last seen on a
// page so notifications can carry it.
type Client struct {
	baseURL    string
	cookie     string
	userAgent  string
	httpClient *http.Client

	mu       gosync.RWMutex
	workerID string
}

// NewClient creates a client for the site rooted at baseURL
// (e.g. https://worker.mturk.com). cookie is sent verbatim as the Cookie
// header and may be empty.
func NewClient(baseURL, cookie, userAgent string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		cookie:    cookie,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WorkerID returns the worker ID last read from a page, or "".
func (c *Client) WorkerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workerID
}

func (c *Client) setWorkerID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workerID = id
}

// AbsoluteURL resolves a site-relative path against the base URL.
func (c *Client) AbsoluteURL(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return c.baseURL + p
}

// Fetch performs a GET on path and returns the raw body with its media
// type. Transport errors and unexpected statuses are returned as
// source.ErrUnavailable; sign-in redirects and 401/403 as
// *source.AuthChallengeError. A 2xx body is not screened for challenge
// markers; the caller does that once it knows the body is not a queue.
func (c *Client) Fetch(ctx context.Context, name, path, accept string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.AbsoluteURL(path), nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", source.Unavailable("executing request GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", source.Unavailable("reading response body: %v", err)
	}

	if resp.Request != nil && strings.Contains(strings.ToLower(resp.Request.URL.Path), "/ap/signin") {
		return nil, "", &source.AuthChallengeError{Source: name, Marker: "redirect " + resp.Request.URL.Path}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, "", &source.AuthChallengeError{Source: name, Marker: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Robot checks are often served with a 503.
		if err := challenge(name, body); err != nil {
			return nil, "", err
		}
		return nil, "", source.Unavailable("unexpected status %d on GET %s", resp.StatusCode, path)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return body, mediaType, nil
}
