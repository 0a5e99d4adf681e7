// Package providers holds the shared HTTP plumbing for the external AI
// providers. Groq and xAI both speak the OpenAI chat completion dialect,
// so the request building, response parsing and SSE handling live here.
package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iris-se/iris/ai"
	"github.com/iris-se/iris/core"
)

// SystemPrompt is the Swedish system prompt shared by all providers.
const SystemPrompt = "Du är IRIS, en intelligent svensk assistent som analyserar data och ger hjälpsamma svar på svenska."

// UserPrompt combines the query with the source context.
func UserPrompt(query, context string) string {
	if strings.TrimSpace(context) == "" {
		return fmt.Sprintf("Användarfråga: %s\n\nGe ett komplett, informativt svar på svenska.", query)
	}
	return fmt.Sprintf(`Användarfråga: %s

Kontext från svenska datakällor:
%s

Ge ett komplett, informativt svar på svenska baserat på kontexten ovan.`, query, context)
}

// ClampTemperature restricts temperature to [0.0, 1.0].
func ClampTemperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// ClampTokens restricts max_tokens to [1, cap].
func ClampTokens(tokens, limit int) int {
	if tokens < 1 {
		return 1
	}
	if tokens > limit {
		return limit
	}
	return tokens
}

// EstimateTokens approximates token usage at four characters per token,
// used when the upstream response carries no usage block.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// ChatMessage is one message in an OpenAI-style conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible completion request body.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatResponse is the OpenAI-compatible completion response body.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// StreamChunk is one SSE event payload during streaming.
type StreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Client is the shared HTTP client for OpenAI-dialect providers.
type Client struct {
	ProviderName string
	BaseURL      string
	APIKey       string
	DefaultModel string
	MaxTokensCap int
	HTTPClient   *http.Client
	Logger       core.Logger
}

// NewClient creates a provider HTTP client.
func NewClient(provider, baseURL, apiKey, defaultModel string, tokenCap int, timeout time.Duration, logger core.Logger) *Client {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		ProviderName: provider,
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
		APIKey:       apiKey,
		DefaultModel: defaultModel,
		MaxTokensCap: tokenCap,
		HTTPClient:   &http.Client{Timeout: timeout},
		Logger:       logger,
	}
}

// buildChatRequest normalizes an analysis request into the wire shape.
func (c *Client) buildChatRequest(req ai.Request, stream bool) ChatRequest {
	model := req.Model
	if model == "" {
		model = c.DefaultModel
	}
	return ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: UserPrompt(req.Query, req.Context)},
		},
		Temperature: ClampTemperature(req.Temperature),
		MaxTokens:   ClampTokens(req.MaxTokens, c.MaxTokensCap),
		Stream:      stream,
	}
}

// Chat performs a non-streaming completion.
func (c *Client) Chat(ctx context.Context, req ai.Request) (*ai.AnalysisResult, error) {
	chatReq := c.buildChatRequest(req, false)

	resp, err := c.post(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: läsning av svar misslyckades: %w", c.ProviderName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("%s: ogiltigt svar: %w", c.ProviderName, err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%s: svar utan choices: %w", c.ProviderName, core.ErrRequestFailed)
	}

	content := chatResp.Choices[0].Message.Content
	tokens := chatResp.Usage.TotalTokens

	return &ai.AnalysisResult{
		Answer:     content,
		Model:      chatReq.Model,
		Provider:   c.ProviderName,
		Kind:       ai.KindAnalysis,
		TokensUsed: tokens,
	}, nil
}

// ChatStream performs a streaming completion, delivering content deltas
// through the callback as they arrive.
func (c *Client) ChatStream(ctx context.Context, req ai.Request, callback ai.StreamCallback) error {
	chatReq := c.buildChatRequest(req, true)

	resp, err := c.post(ctx, chatReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return c.statusError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Tolerate malformed keep-alive frames
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := callback(content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: stream avbruten: %w", c.ProviderName, err)
	}
	return nil
}

// ChatStreamAssembled runs a streaming completion but returns the fully
// assembled answer, with token usage estimated from its length.
func (c *Client) ChatStreamAssembled(ctx context.Context, req ai.Request) (*ai.AnalysisResult, error) {
	var full strings.Builder
	err := c.ChatStream(ctx, req, func(chunk string) error {
		full.WriteString(chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.DefaultModel
	}
	answer := full.String()
	return &ai.AnalysisResult{
		Answer:     answer,
		Model:      model,
		Provider:   c.ProviderName,
		Kind:       ai.KindStreaming,
		TokensUsed: EstimateTokens(answer),
	}, nil
}

func (c *Client) post(ctx context.Context, chatReq ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s: kunde inte koda begäran: %w", c.ProviderName, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.ProviderName, err)
	}
	return resp, nil
}

func (c *Client) statusError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	if len(message) > 200 {
		message = message[:200]
	}
	return &core.ServiceError{
		Op:      "chat_completion",
		Kind:    fmt.Sprintf("http_%d", status),
		Service: c.ProviderName,
		Err:     fmt.Errorf("%s: %w", message, core.ErrRequestFailed),
	}
}
