package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/blob"
	"github.com/sakif/poetry-studio/internal/generate"
	"github.com/sakif/poetry-studio/internal/model"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "://nope"} {
		_, err := New(raw)
		assert.Error(t, err, "url %q", raw)
	}
}

func TestListAndCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/poems/count", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":13}`))
	})
	mux.HandleFunc("GET /api/poems", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "6", r.URL.Query().Get("limit"))
		assert.Equal(t, "12", r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode([]model.Poem{{ID: "p1", Title: "last one"}})
	})
	c := newTestClient(t, mux)

	n, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 13, n)

	poems, err := c.List(context.Background(), 6, 12)
	require.NoError(t, err)
	require.Len(t, poems, 1)
	assert.Equal(t, "last one", poems[0].Title)
}

func TestBearerToken(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}), WithToken("tok-123"))

	require.NoError(t, c.Delete(context.Background(), "p1"))
	assert.Equal(t, "Bearer tok-123", got)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusBadRequest, `{"error":"validation_error","message":"title is required","field":"title"}`, apperror.ErrValidation},
		{http.StatusNotFound, `{"error":"not_found","message":"poem not found with id x"}`, apperror.ErrNotFound},
		{http.StatusUnauthorized, `{"error":"unauthorized"}`, apperror.ErrForbidden},
		{http.StatusTooManyRequests, `{"error":"rate_limited","message":"slow down"}`, apperror.ErrRateLimited},
		{http.StatusServiceUnavailable, ``, apperror.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))

			_, err := c.GetByID(context.Background(), "x")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("field survives", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"validation_error","message":"content is required","field":"content"}`)
		}))
		_, err := c.Create(context.Background(), model.PoemInput{Title: "t"})
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "content", appErr.Field)
	})
}

func TestUploadBackground(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "sky.png", header.Filename)
		assert.Equal(t, "pixels", string(data))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"url":"https://cdn.example.com/background/abc.png"}`)
	}))

	url, err := c.UploadBackground(context.Background(), "/home/me/sky.png", strings.NewReader("pixels"), 6)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/background/abc.png", url)
}

func TestUploadBackground_TooLargeNeverSent(t *testing.T) {
	called := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := c.UploadBackground(context.Background(), "big.jpg", strings.NewReader(""), blob.MaxUploadSize+1)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.False(t, called, "oversized upload reached the network")
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"error":"forbidden","message":"invalid credentials"}`)
			return
		}
		io.WriteString(w, `{"token":"jwt-token","expiresAt":"2030-01-01T00:00:00Z"}`)
	}))

	token, err := c.Login(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)

	_, err = c.Login(context.Background(), "wrong")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}

// =========================================================================
// ENHANCE STREAM TESTS
// =========================================================================

func TestGenerate_Stream(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"partial":"Starting analysis..."}`+"\n")
		io.WriteString(w, `{"partial":"Analysing with m1...\n\n"}`+"\n")
		io.WriteString(w, `{"final":"a commentary"}`+"\n")
	}))

	var partials []string
	out, err := c.Generate(context.Background(), "poem", func(p string) { partials = append(partials, p) })
	require.NoError(t, err)
	assert.Equal(t, "a commentary", out)
	assert.Equal(t, []string{"Starting analysis...", "Analysing with m1...\n\n"}, partials)
}

func TestGenerate_ErrorEvent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"partial":"Starting analysis..."}`+"\n")
		io.WriteString(w, `{"error":"rate_limited","message":"rate limit reached"}`+"\n")
	}))

	_, err := c.Generate(context.Background(), "poem", nil)
	assert.True(t, errors.Is(err, apperror.ErrRateLimited), "got %v", err)
}

func TestGenerate_Cancelled(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"partial":"Starting analysis..."}`+"\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.Generate(ctx, "poem", func(string) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
	})
	assert.True(t, generate.IsCancelled(err), "got %v", err)
}
