package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash-latest"

// geminiOpeningTurn stands in for the user when a conversation starts with a
// model reply, since Gemini histories must open with a user turn.
const geminiOpeningTurn = "Here is the analysis we are discussing."

// GeminiClient is the Completer backed by Google's Gemini models.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiClient builds a client. Without a usable key no SDK client is
// created and Complete answers with MsgMissingGeminiKey.
func NewGeminiClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !usableKey(apiKey) {
		return &GeminiClient{model: model, logger: logger}, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, logger: logger}, nil
}

// Configured reports whether a real credential was given.
func (g *GeminiClient) Configured() bool {
	return g.client != nil
}

func (g *GeminiClient) Close() {
	if g.client == nil {
		return
	}
	if err := g.client.Close(); err != nil {
		g.logger.Warn("closing gemini client", zap.Error(err))
	}
}

// Complete replays all but the last message as chat history and sends the
// last one, which must come from the user.
func (g *GeminiClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if !g.Configured() {
		return MsgMissingGeminiKey, nil
	}
	system, history, last, err := toGeminiContents(messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChatService, err)
	}

	model := g.client.GenerativeModel(g.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChatService, err)
	}
	text := responseText(resp)
	if text == "" {
		g.logger.Debug("gemini returned no text candidates")
		return MsgNoValidResponse, nil
	}
	return text, nil
}

// toGeminiContents folds system messages into one instruction, maps the
// assistant role to Gemini's "model" and makes the history open with a user
// turn.
func toGeminiContents(messages []ChatMessage) (string, []*genai.Content, *genai.Content, error) {
	var (
		system  []string
		history []*genai.Content
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(history) == 0 {
		return "", nil, nil, fmt.Errorf("no messages to send")
	}
	if history[0].Role != "user" {
		opening := &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(geminiOpeningTurn)}}
		history = append([]*genai.Content{opening}, history...)
	}
	last := history[len(history)-1]
	if last.Role != "user" {
		return "", nil, nil, fmt.Errorf("last message is from %q, not the user", last.Role)
	}
	return strings.Join(system, "\n\n"), history[:len(history)-1], last, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
