package providers

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

	"github.com/iris-se/iris/ai"
	"github.com/iris-se/iris/core"
)

func testClient(baseURL string) *Client {
	return NewClient("testprov", baseURL, "hemlig-nyckel", "test-modell", 4096,
		5*time.Second, nil)
}

func TestChatSendsOpenAIShapedRequest(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer hemlig-nyckel", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "Ett svar på svenska"}}],
			"usage": {"total_tokens": 123}
		}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Chat(context.Background(), ai.Request{
		Query:       "Hur mår börsen?",
		Context:     "=== OMX ===\nOMX Index: 2450.5 SEK",
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	require.NoError(t, err)

	assert.Equal(t, "test-modell", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Contains(t, got.Messages[1].Content, "Användarfråga: Hur mår börsen?")
	assert.Contains(t, got.Messages[1].Content, "Kontext från svenska datakällor:")
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 2048, got.MaxTokens)
	assert.False(t, got.Stream)

	assert.Equal(t, "Ett svar på svenska", result.Answer)
	assert.Equal(t, "testprov", result.Provider)
	assert.Equal(t, ai.KindAnalysis, result.Kind)
	assert.Equal(t, 123, result.TokensUsed)
}

func TestChatMissingUsageDefaultsToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "Svar"}}]}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Chat(context.Background(), ai.Request{Query: "test"})
	require.NoError(t, err)
	assert.Zero(t, result.TokensUsed)
}

func TestChatEmptyChoicesIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Chat(context.Background(), ai.Request{Query: "test"})
	assert.ErrorIs(t, err, core.ErrRequestFailed)
}

func TestChatHTTPErrorCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Chat(context.Background(), ai.Request{Query: "test"})
	require.Error(t, err)

	var svcErr *core.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "http_429", svcErr.Kind)
	assert.Equal(t, "testprov", svcErr.Service)
	assert.ErrorIs(t, err, core.ErrRequestFailed)
}

func TestChatClampsTemperatureAndTokens(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "x"}}]}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Chat(context.Background(), ai.Request{
		Query:       "test",
		Temperature: 1.8,
		MaxTokens:   100000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Temperature)
	assert.Equal(t, 4096, got.MaxTokens)

	_, err = testClient(server.URL).Chat(context.Background(), ai.Request{
		Query:       "test",
		Temperature: -0.5,
		MaxTokens:   0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Temperature)
	assert.Equal(t, 1, got.MaxTokens)
}

func TestChatStreamDeliversDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hej \"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Sverige\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	var chunks []string
	err := testClient(server.URL).ChatStream(context.Background(), ai.Request{Query: "hej"},
		func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hej ", "Sverige"}, chunks)
}

func TestChatStreamCallbackErrorAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	stop := errors.New("stoppa")
	err := testClient(server.URL).ChatStream(context.Background(), ai.Request{Query: "hej"},
		func(chunk string) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestChatStreamAssembled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hela \"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"svaret\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	result, err := testClient(server.URL).ChatStreamAssembled(context.Background(), ai.Request{Query: "hej"})
	require.NoError(t, err)
	assert.Equal(t, "Hela svaret", result.Answer)
	assert.Equal(t, ai.KindStreaming, result.Kind)
	assert.Equal(t, len("Hela svaret")/4, result.TokensUsed)
}

func TestUserPromptWithoutContext(t *testing.T) {
	prompt := UserPrompt("Vad är klockan?", "   ")
	assert.Contains(t, prompt, "Användarfråga: Vad är klockan?")
	assert.NotContains(t, prompt, "Kontext från svenska datakällor")
}
