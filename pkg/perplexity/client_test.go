package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exa-sheets/internal/resilience"
)

func TestAsk(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
		wantText      string
		wantCites     []string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"model": "sonar-pro",
				"citations": ["https://nvidia.com/leadership"],
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Jensen Huang"}}],
				"usage": {"total_tokens": 42}
			}`,
			wantText:  "Jensen Huang",
			wantCites: []string{"https://nvidia.com/leadership"},
		},
		{
			name:   "no_choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
		},
		{
			name:          "rate_limit",
			status:        http.StatusTooManyRequests,
			body:          `{"error": "rate limit exceeded"}`,
			wantErr:       "status 429",
			wantTransient: true,
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			body:    `{"error":"invalid api key"}`,
			wantErr: "invalid api key",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a, err := NewClient("test-key", WithBaseURL(srv.URL+"/")).Ask(context.Background(), Question{Text: "Who is the CEO of Nvidia?"})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, a.Text)
			assert.Equal(t, tt.wantCites, a.Citations)
		})
	}
}

func TestAsk_RequestBody(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		q          Question
		wantModel  string
		wantSystem string
		wantMax    float64
	}{
		{name: "defaults", q: Question{Text: "q"}, wantModel: "sonar-pro", wantSystem: defaultSystem, wantMax: 128},
		{name: "client_options", opts: []Option{WithModel("sonar"), WithMaxTokens(32)}, q: Question{Text: "q"}, wantModel: "sonar", wantSystem: defaultSystem, wantMax: 32},
		{name: "question_overrides", q: Question{Text: "q", Model: "sonar-reasoning", System: "be terse"}, wantModel: "sonar-reasoning", wantSystem: "be terse", wantMax: 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var raw struct {
					Model       string        `json:"model"`
					Temperature float64       `json:"temperature"`
					MaxTokens   float64       `json:"max_tokens"`
					Messages    []chatMessage `json:"messages"`
				}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
				assert.Equal(t, tt.wantModel, raw.Model)
				assert.Equal(t, tt.wantMax, raw.MaxTokens)
				assert.Zero(t, raw.Temperature)
				assert.Equal(t, []chatMessage{{Role: "system", Content: tt.wantSystem}, {Role: "user", Content: "q"}}, raw.Messages)
				_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
			}))
			defer srv.Close()

			opts := append([]Option{WithBaseURL(srv.URL)}, tt.opts...)
			a, err := NewClient("k", opts...).Ask(context.Background(), tt.q)
			require.NoError(t, err)
			assert.Equal(t, "ok", a.Text)
		})
	}
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	hc := NewClient("my-key").(*httpClient)
	assert.Equal(t, "my-key", hc.apiKey)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, defaultModel, hc.model)
	assert.Equal(t, defaultMaxTokens, hc.maxTokens)
	assert.Nil(t, hc.limiter)

	custom := &http.Client{}
	hc = NewClient("k", WithHTTPClient(custom), WithRateLimit(5)).(*httpClient)
	assert.Same(t, custom, hc.http)
	require.NotNil(t, hc.limiter)

	hc = NewClient("k", WithRateLimit(5), WithRateLimit(0)).(*httpClient)
	assert.Nil(t, hc.limiter)
}
