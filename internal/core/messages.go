// Package core runs the AI-assisted parts of the explorer: the two-country
// comparison with its follow-up chat, and the dashboard advisor.
package core

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrChatService = errors.New("chat service unavailable")

// Fixed texts shown in place of a model reply.
const (
	MsgMissingAPIKey     = "Error: Please provide a valid OpenAI API key in the server configuration."
	MsgMissingGeminiKey  = "Error: Please provide a valid Gemini API key in the server configuration."
	MsgNoValidResponse   = "Could not retrieve a valid response from the AI."
	MsgAnalysisFailed    = "There was an error processing the analysis."
	MsgCompareChatFailed = "Sorry, I encountered an error. Please try again."
	MsgAdvisorFailed     = "Sorry, I encountered an error."
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// Completer returns the model's reply to a conversation. Each call is one
// attempt; failures are reported as ErrChatService.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}
