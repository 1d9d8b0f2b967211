package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vidauth/internal/resilience"
)

const okBody = `{
	"id": "gen-123",
	"model": "google/gemini-2.0-flash-001",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"real_probability\": 0.9}"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 1200, "completion_tokens": 40, "total_tokens": 1240}
}`

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantStatus    int
		wantTransient bool
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   okBody,
		},
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"error": {"message": "No auth credentials found"}}`,
			wantErr:    "unexpected status 401",
			wantStatus: 401,
		},
		{
			name:          "rate_limit",
			status:        http.StatusTooManyRequests,
			body:          `{"error": "rate limit exceeded"}`,
			wantErr:       "unexpected status 429",
			wantStatus:    429,
			wantTransient: true,
		},
		{
			name:          "server_error",
			status:        http.StatusBadGateway,
			body:          `upstream down`,
			wantErr:       "unexpected status 502",
			wantStatus:    502,
			wantTransient: true,
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))

			resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
				Messages: []Message{{Role: "user", Content: []ContentPart{TextPart("Hi")}}},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				assert.Equal(t, tt.wantStatus, resilience.StatusCode(err))
				assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
				return
			}

			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, "gen-123", resp.ID)
			require.Len(t, resp.Choices, 1)
			assert.Equal(t, `{"real_probability": 0.9}`, resp.Choices[0].Message.Content)
			assert.Equal(t, 1200, resp.Usage.PromptTokens)
			assert.Equal(t, 40, resp.Usage.CompletionTokens)
		})
	}
}

func TestChatCompletion_StatusErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"insufficient credits"}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)

	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusPaymentRequired, serr.StatusCode)
	assert.Equal(t, `{"error":"insufficient credits"}`, serr.Body)
	assert.False(t, resilience.IsTransient(err))
}

func TestChatCompletion_WireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://vidauth-detector.local", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "AI Video Authenticity Detector", r.Header.Get("X-Title"))

		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "google/gemini-2.0-flash-001", raw["model"])
		assert.InDelta(t, 0.1, raw["temperature"], 1e-9)
		assert.InDelta(t, 300, raw["max_tokens"], 1e-9)

		msgs := raw["messages"].([]any)
		require.Len(t, msgs, 1)
		msg := msgs[0].(map[string]any)
		assert.Equal(t, "user", msg["role"])
		parts := msg["content"].([]any)
		require.Len(t, parts, 2)
		assert.Equal(t, map[string]any{"type": "text", "text": "look"}, parts[0])
		assert.Equal(t, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": "data:image/png;base64,AAAA"},
		}, parts[1])

		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	temp := 0.1
	maxTokens := 300
	client := NewClient("k",
		WithBaseURL(srv.URL),
		WithAttribution("https://vidauth-detector.local", "AI Video Authenticity Detector"),
	)
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{
			Role:    "user",
			Content: []ContentPart{TextPart("look"), ImagePart(DataURL("image/png", "AAAA"))},
		}},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	require.NoError(t, err)
}

func TestWithModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "openai/gpt-4o-mini", req.Model)
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithModel("openai/gpt-4o-mini"))
	assert.Equal(t, "openai/gpt-4o-mini", client.Model())

	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.NoError(t, err)
}

func TestEmptyOptionsKeepDefaults(t *testing.T) {
	client := NewClient("k", WithModel(""), WithBaseURL(""), WithTimeout(0))
	hc := client.(*httpClient)
	assert.Equal(t, defaultModel, hc.model)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, defaultTimeout, hc.http.Timeout)
}

func TestWithTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
	assert.Equal(t, resilience.ReasonTimeout, resilience.Reason(err))
}

func TestContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient("k", WithBaseURL(srv.URL)).ChatCompletion(ctx, ChatCompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, resilience.ReasonCanceled, resilience.Reason(err))
}
