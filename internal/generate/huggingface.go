package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/sakif/poetry-studio/internal/apperror"
)

// DefaultModels is the fallback order used when Config.Models is empty.
var DefaultModels = []string{
	"paust/pko-t5-base",
	"nlpai-lab/kullm-polyglot-12.8b-v2",
	"maywell/KoGPT-2-Base",
	"kykim/gpt3-kor-small_based_on_gpt2",
}

const (
	DefaultBaseURL   = "https://api-inference.huggingface.co"
	DefaultRetryWait = 2 * time.Second
	DefaultMinLength = 30
)

// Config configures the HuggingFace inference client.
type Config struct {
	BaseURL string
	Token   string
	Models  []string

	// RetryWait is the pause after a 429 before the next model is tried.
	RetryWait time.Duration
	// MinLength is the shortest answer accepted, in characters (exclusive).
	MinLength int
	// RequestsPerSecond paces outbound calls. Zero means no pacing.
	RequestsPerSecond float64
	// Timeout bounds a single model request.
	Timeout time.Duration

	// HTTPClient is the transport underneath the bearer-token client. Tests inject one.
	HTTPClient *http.Client
}

// HuggingFace implements Generator against the HuggingFace inference API.
type HuggingFace struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Generator = (*HuggingFace)(nil)

func NewHuggingFace(cfg Config, logger *slog.Logger) *HuggingFace {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = DefaultRetryWait
	}
	if cfg.MinLength == 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	client := base
	if cfg.Token != "" {
		// oauth2.NewClient wraps base's transport and adds "Authorization: Bearer <token>".
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
		client.Timeout = cfg.Timeout
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &HuggingFace{
		cfg:     cfg,
		http:    client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	DoSample          bool    `json:"do_sample"`
}

type inferenceResult struct {
	GeneratedText string `json:"generated_text"`
}

// errRateLimited marks a 429 from one model.
var errRateLimited = errors.New("rate limited")

// Prompt builds the analysis request sent to every model.
func Prompt(text string) string {
	return "Poem:\n" + text + "\n\n" +
		"Analyse the poem above from these angles:\n" +
		"- theme and meaning\n" +
		"- emotion and mood\n" +
		"- characteristic poetic expression\n" +
		"- what could be improved\n\n" +
		"Analysis:"
}

// Generate walks the model list until one returns a usable answer.
func (h *HuggingFace) Generate(ctx context.Context, text string, onPartial func(string)) (string, error) {
	if onPartial == nil {
		onPartial = func(string) {}
	}
	prompt := Prompt(text)

	onPartial("Starting analysis...")

	var lastErr error
	for _, model := range h.cfg.Models {
		if ctx.Err() != nil {
			return "", cancelled(ctx)
		}

		onPartial(fmt.Sprintf("Analysing with %s...\n\n", model))

		out, err := h.call(ctx, model, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return "", cancelled(ctx)
			}
			h.logger.Warn("generation attempt failed",
				slog.String("model", model),
				slog.String("error", err.Error()),
			)
			lastErr = err

			if errors.Is(err, errRateLimited) {
				if werr := h.wait(ctx); werr != nil {
					return "", cancelled(ctx)
				}
			}
			continue
		}

		if len([]rune(out)) > h.cfg.MinLength {
			onPartial(out)
			h.logger.Info("generation succeeded",
				slog.String("model", model),
				slog.Int("length", len(out)),
			)
			return out, nil
		}
		lastErr = fmt.Errorf("model %s: answer too short", model)
	}

	if errors.Is(lastErr, errRateLimited) {
		return "", apperror.RateLimited("too many requests, please try again shortly")
	}
	return "", apperror.Unavailable("all models are currently unavailable, please try again shortly")
}

func (h *HuggingFace) wait(ctx context.Context) error {
	t := time.NewTimer(h.cfg.RetryWait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call sends one inference request and returns the generated text with the
// echoed prompt removed.
func (h *HuggingFace) call(ctx context.Context, model, prompt string) (string, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(inferenceRequest{
		Inputs: prompt,
		Parameters: inferenceParameters{
			MaxNewTokens:      200,
			Temperature:       0.7,
			TopP:              0.9,
			RepetitionPenalty: 1.2,
			DoSample:          true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	endpoint := h.cfg.BaseURL + "/models/" + escapeModel(model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("model %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("model %s: %w", model, errRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var results []inferenceResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("model %s: decoding response: %w", model, err)
	}
	if len(results) == 0 || results[0].GeneratedText == "" {
		return "", fmt.Errorf("model %s: empty response", model)
	}

	return strings.TrimSpace(strings.Replace(results[0].GeneratedText, prompt, "", 1)), nil
}

// escapeModel escapes each path segment of an "owner/name" model id.
func escapeModel(model string) string {
	parts := strings.Split(model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
