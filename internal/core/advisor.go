package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"econglobe.io/explorer/internal/store"
)

const advisorPromptFormat = "Based on the user's current dashboard which includes items for: %s. " +
	"The user is asking the following question: \"%s\". " +
	"Provide a thoughtful and relevant answer. " +
	"If they ask for recommendations, suggest a few specific countries or economic indicators " +
	"they might find interesting and briefly explain why."

// DashboardAdvisor answers questions about a user's dashboard. Each question
// is sent as one self-contained prompt; earlier turns are not replayed.
type DashboardAdvisor struct {
	completer Completer
	logger    *zap.Logger
}

func NewDashboardAdvisor(completer Completer, logger *zap.Logger) *DashboardAdvisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardAdvisor{completer: completer, logger: logger}
}

// Suggest returns transcript extended with the question and the reply, or
// MsgAdvisorFailed when the call fails. A blank question or an empty
// dashboard leaves the transcript unchanged.
func (a *DashboardAdvisor) Suggest(ctx context.Context, transcript []ChatMessage, items []store.SavedItem, question string) []ChatMessage {
	question = strings.TrimSpace(question)
	if question == "" || len(items) == 0 {
		return transcript
	}

	out := append(slices.Clone(transcript), UserMessage(question))
	prompt := fmt.Sprintf(advisorPromptFormat, DashboardSummary(items), question)
	reply, err := a.completer.Complete(ctx, []ChatMessage{UserMessage(prompt)})
	if err != nil {
		a.logger.Warn("dashboard advisor failed", zap.Error(err))
		reply = MsgAdvisorFailed
	}
	return append(out, AssistantMessage(reply))
}

// DashboardSummary lists item labels joined by ", ".
func DashboardSummary(items []store.SavedItem) string {
	labels := make([]string, 0, len(items))
	for _, item := range items {
		labels = append(labels, item.Label())
	}
	return strings.Join(labels, ", ")
}

// AdvisorChat is one browser session's advisor conversation.
type AdvisorChat struct {
	advisor *DashboardAdvisor

	mu         sync.Mutex
	transcript []ChatMessage
	pending    bool
}

func (c *AdvisorChat) Ask(ctx context.Context, items []store.SavedItem, question string) ([]ChatMessage, error) {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	c.pending = true
	before := slices.Clone(c.transcript)
	c.mu.Unlock()

	after := c.advisor.Suggest(ctx, before, items, question)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	c.transcript = after
	return slices.Clone(after), nil
}

func (c *AdvisorChat) Transcript() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(c.transcript)
	if out == nil {
		out = []ChatMessage{}
	}
	return out
}
