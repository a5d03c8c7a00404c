// Package client is the CLI's view of the server's JSON API.
//
// *Client satisfies collection.Collaborator, so the CLI's history command runs
// the same paginated view the server pages use, and generate.Generator, so
// `poetry enhance` consumes the server's NDJSON stream like a local generator.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/blob"
	"github.com/sakif/poetry-studio/internal/collection"
	"github.com/sakif/poetry-studio/internal/generate"
	"github.com/sakif/poetry-studio/internal/model"
)

var (
	_ collection.Collaborator = (*Client)(nil)
	_ generate.Generator      = (*Client)(nil)
)

// Client talks to a poetry-studio server.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

type options struct {
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*options)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option { return func(o *options) { o.token = token } }

// WithTimeout bounds non-streaming requests. The enhance stream is bounded by
// its context only.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithHTTPClient replaces the underlying client. Tests pass httptest's.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func New(baseURL string, opts ...Option) (*Client, error) {
	o := options{timeout: 30 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid API URL %q", baseURL)
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	if o.token != "" {
		// Copy so the caller's client keeps its own transport.
		wrapped := *hc
		wrapped.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token}),
			Base:   hc.Transport,
		}
		hc = &wrapped
	}

	return &Client{
		base:    u,
		http:    hc,
		timeout: o.timeout,
		logger:  o.logger.With(slog.String("api", u.String())),
	}, nil
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := *c.base
	u.Path = path.Join(u.Path, p)
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends a request bounded by the client timeout and decodes a JSON answer into out.
func (c *Client) do(ctx context.Context, method, p string, q url.Values, body io.Reader, contentType string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p, q), body)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api call", slog.String("method", method), slog.String("path", p), slog.Int("status", resp.StatusCode))

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s response: %w", p, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, p string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	return c.do(ctx, method, p, nil, body, "application/json", out)
}

// errorResponse mirrors handler.ErrorResponse.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// decodeError turns an error response back into the apperror the server started from.
func decodeError(resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return toAppError(resp.StatusCode, body)
}

func toAppError(status int, body errorResponse) error {
	switch {
	case status == http.StatusUnauthorized:
		return apperror.Forbidden("login required: run `poetry login`")
	case body.Error == "validation_error" || status == http.StatusBadRequest:
		return apperror.ValidationFailed(body.Field, body.Message)
	case body.Error == "not_found" || status == http.StatusNotFound:
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: body.Message}
	case body.Error == "forbidden" || status == http.StatusForbidden:
		return apperror.Forbidden(body.Message)
	case body.Error == "conflict" || status == http.StatusConflict:
		return &apperror.AppError{Err: apperror.ErrConflict, Message: body.Message}
	case body.Error == "rate_limited" || status == http.StatusTooManyRequests:
		return apperror.RateLimited(body.Message)
	case body.Error == "unavailable" || status == http.StatusServiceUnavailable:
		return apperror.Unavailable(body.Message)
	}
	return fmt.Errorf("client: server error %d: %s", status, body.Message)
}

// =========================================================================
// POEMS
// =========================================================================

func (c *Client) Count(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/poems/count", nil, nil, "", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) List(ctx context.Context, limit, offset int) ([]model.Poem, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var poems []model.Poem
	if err := c.do(ctx, http.MethodGet, "/api/poems", q, nil, "", &poems); err != nil {
		return nil, err
	}
	return poems, nil
}

func (c *Client) GetByID(ctx context.Context, id string) (*model.Poem, error) {
	var poem model.Poem
	if err := c.do(ctx, http.MethodGet, "/api/poems/"+url.PathEscape(id), nil, nil, "", &poem); err != nil {
		return nil, err
	}
	return &poem, nil
}

func (c *Client) Create(ctx context.Context, in model.PoemInput) (*model.Poem, error) {
	var poem model.Poem
	if err := c.doJSON(ctx, http.MethodPost, "/api/poems", in, &poem); err != nil {
		return nil, err
	}
	return &poem, nil
}

func (c *Client) Update(ctx context.Context, id string, in model.PoemInput) (*model.Poem, error) {
	var poem model.Poem
	if err := c.doJSON(ctx, http.MethodPut, "/api/poems/"+url.PathEscape(id), in, &poem); err != nil {
		return nil, err
	}
	return &poem, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/poems/"+url.PathEscape(id), nil, nil, "", nil)
}

// =========================================================================
// BACKGROUNDS
// =========================================================================

func (c *Client) Backgrounds(ctx context.Context) ([]string, error) {
	var urls []string
	if err := c.do(ctx, http.MethodGet, "/api/backgrounds", nil, nil, "", &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// UploadBackground sends an image as multipart "file". The size limit is checked
// before anything is sent.
func (c *Client) UploadBackground(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	if err := blob.CheckSize(size); err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		fw, err := mw.CreateFormFile("file", path.Base(filename))
		if err == nil {
			_, err = io.Copy(fw, io.LimitReader(r, size))
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/backgrounds", nil, pr, mw.FormDataContentType(), &out); err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	return out.URL, nil
}

// =========================================================================
// SESSION
// =========================================================================

// Login exchanges the password for a session token.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", map[string]string{"password": password}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("client: login response carried no token")
	}
	return out.Token, nil
}

// =========================================================================
// ENHANCE
// =========================================================================

type enhanceEvent struct {
	Partial string `json:"partial"`
	Final   string `json:"final"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Generate streams POST /api/enhance. Every partial line is passed to onPartial
// as it arrives. Cancelling ctx aborts the request and returns generate.ErrCancelled.
func (c *Client) Generate(ctx context.Context, text string, onPartial func(string)) (string, error) {
	raw, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("client: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/enhance", nil), bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", generate.ErrCancelled, ctx.Err())
		}
		return "", fmt.Errorf("client: enhance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", decodeError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev enhanceEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return "", fmt.Errorf("client: malformed enhance event: %w", err)
		}
		switch {
		case ev.Error == "cancelled":
			return "", generate.ErrCancelled
		case ev.Error != "":
			return "", toAppError(0, errorResponse{Error: ev.Error, Message: ev.Message})
		case ev.Final != "":
			return ev.Final, nil
		case ev.Partial != "" && onPartial != nil:
			onPartial(ev.Partial)
		}
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %w", generate.ErrCancelled, ctx.Err())
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("client: reading enhance stream: %w", err)
	}
	return "", apperror.Unavailable("enhance stream ended without a result")
}
