package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultOpenAIURL   = "https://api.openai.com/v1/chat/completions"
	DefaultOpenAIModel = "gpt-3.5-turbo"

	placeholderAPIKey    = "YOUR_CHATGPT_API_KEY_HERE"
	placeholderGeminiKey = "YOUR_GEMINI_API_KEY_HERE"
	maxResponseSize      = 4 << 20
)

type openAIRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewOpenAIClient(apiKey, url, model string, httpClient *http.Client, logger *zap.Logger) *OpenAIClient {
	if url == "" {
		url = DefaultOpenAIURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{apiKey: apiKey, url: url, model: model, httpClient: httpClient, logger: logger}
}

// Configured reports whether a real credential is set.
func (c *OpenAIClient) Configured() bool {
	return usableKey(c.apiKey)
}

func usableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != placeholderAPIKey && key != placeholderGeminiKey
}

// Complete sends the whole conversation. Without a usable credential it
// answers with MsgMissingAPIKey and makes no request. An empty choice list
// yields MsgNoValidResponse.
func (c *OpenAIClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if !c.Configured() {
		return MsgMissingAPIKey, nil
	}

	body, err := json.Marshal(openAIRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrChatService, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrChatService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChatService, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrChatService, err)
	}
	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrChatService, resp.StatusCode)
	}

	var decoded openAIResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrChatService, err)
	}
	if len(decoded.Choices) == 0 {
		return MsgNoValidResponse, nil
	}
	return decoded.Choices[0].Message.Content, nil
}
