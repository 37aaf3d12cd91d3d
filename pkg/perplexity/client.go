// Package perplexity asks single factual questions through Perplexity's
// Sonar chat API.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/exa-sheets/internal/resilience"
)

const (
	defaultBaseURL   = "https://api.perplexity.ai"
	defaultModel     = "sonar-pro"
	defaultMaxTokens = 128
	defaultSystem    = "Answer with the requested value only. No sentences, no sources."
)

// Client answers one question per call.
type Client interface {
	Ask(ctx context.Context, q Question) (*Answer, error)
}

// Question is one prompt. Empty fields fall back to the client defaults.
type Question struct {
	Text   string
	System string
	Model  string
}

// Answer is the first completion text plus the sources Sonar cited.
type Answer struct {
	Text      string
	Citations []string
	Model     string
	Tokens    int
}

// chatRequest and chatResponse mirror the parts of POST /chat/completions
// that Ask uses.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model     string   `json:"model"`
	Citations []string `json:"citations"`
	Choices   []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL points the client at another host.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the model used when a Question leaves Model empty.
func WithModel(model string) Option {
	return func(c *httpClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens caps the answer length.
func WithMaxTokens(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithHTTPClient replaces the http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles requests to rps per second. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = nil
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Perplexity client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		http:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Ask(ctx context.Context, q Question) (*Answer, error) {
	req := chatRequest{
		Model:     q.Model,
		MaxTokens: c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: q.System},
			{Role: "user", Content: q.Text},
		},
	}
	if req.Model == "" {
		req.Model = c.model
	}
	if q.System == "" {
		req.Messages[0].Content = defaultSystem
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}

	a := &Answer{Citations: resp.Citations, Model: resp.Model, Tokens: resp.Usage.TotalTokens}
	if len(resp.Choices) > 0 {
		a.Text = resp.Choices[0].Message.Content
	}
	return a, nil
}

// post sends body as JSON and decodes a 200 response into out. Retryable
// statuses come back as resilience.TransientError.
func (c *httpClient) post(ctx context.Context, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "perplexity: rate limit")
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "perplexity: encode")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "perplexity: build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "perplexity: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := eris.Errorf("perplexity: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "perplexity: decode response")
	}
	return nil
}
