package core

import (
	"go.uber.org/zap"

	"econglobe.io/explorer/internal/state"
)

// Sessions keeps the comparison and advisor state of each browser session.
// Both are discarded when the user navigates back to their page, or once
// they have sat unused for state.DefaultIdle.
type Sessions struct {
	comparisons *state.Registry[*ComparisonSession]
	advisors    *state.Registry[*AdvisorChat]
}

func NewSessions(completer Completer, logger *zap.Logger) *Sessions {
	advisor := NewDashboardAdvisor(completer, logger)
	return &Sessions{
		comparisons: state.NewRegistry(func() *ComparisonSession {
			return NewComparisonSession(completer, logger)
		}),
		advisors: state.NewRegistry(func() *AdvisorChat {
			return &AdvisorChat{advisor: advisor}
		}),
	}
}

func (s *Sessions) Comparison(sid string) *ComparisonSession {
	return s.comparisons.Get(sid)
}

func (s *Sessions) Advisor(sid string) *AdvisorChat {
	return s.advisors.Get(sid)
}

// DropComparison resets and forgets the session's comparison, cancelling
// any call still running for it.
func (s *Sessions) DropComparison(sid string) {
	if c, ok := s.comparisons.Lookup(sid); ok {
		c.Reset()
		s.comparisons.Drop(sid)
	}
}

func (s *Sessions) DropAdvisor(sid string) {
	s.advisors.Drop(sid)
}
