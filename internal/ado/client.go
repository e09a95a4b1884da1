package ado

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kazz187/adotask/internal/config"
	"github.com/kazz187/adotask/pkg/clog"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypeJSONPatch = "application/json-patch+json"
)

// Error is returned for every non-2xx response. Status codes are not
// interpreted beyond that.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ADO %s %s -> %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

type Request struct {
	Method string
	// Path is appended to the project API root, e.g. "/wit/workitems/42".
	Path        string
	Query       url.Values
	Body        any
	ContentType string
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	org        string
	project    string
	pat        string
	apiVersion string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(env *config.ADOEnv, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    strings.TrimSuffix(env.BaseURL, "/"),
		org:        env.Org,
		project:    env.Project,
		pat:        env.PAT,
		apiVersion: env.APIVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OrgURL is the organization root that relation targets are addressed by.
func (c *Client) OrgURL() string {
	return c.baseURL + "/" + url.PathEscape(c.org)
}

func (c *Client) projectURL() string {
	return c.OrgURL() + "/" + url.PathEscape(c.project) + "/_apis"
}

func (c *Client) authHeader() string {
	token := base64.StdEncoding.EncodeToString([]byte(":" + c.pat))
	return "Basic " + token
}

// Do executes req and decodes the JSON response into out when out is
// non-nil.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	query := url.Values{}
	for k, v := range req.Query {
		query[k] = v
	}
	query.Set("api-version", c.apiVersion)
	u := c.projectURL() + req.Path + "?" + query.Encode()

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("ADO %s %s: failed to encode body: %w", req.Method, u, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return fmt.Errorf("ADO %s %s: failed to build request: %w", req.Method, u, err)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = ContentTypeJSON
	}
	httpReq.Header.Set("Authorization", c.authHeader())
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", ContentTypeJSON)

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ADO %s %s: %w", req.Method, u, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ADO %s %s: failed to read response: %w", req.Method, u, err)
	}

	attrs := []any{
		"method", req.Method,
		"url", u,
		"status", resp.StatusCode,
		"duration", time.Since(startTime),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		clog.Log(ctx, clog.HTTPStatusToLevel(resp.StatusCode), "ADO request failed", attrs...)
		return &Error{
			Method:     req.Method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}
	slog.DebugContext(ctx, "ADO request", attrs...)

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("ADO %s %s: failed to decode response: %w", req.Method, u, err)
	}
	return nil
}
