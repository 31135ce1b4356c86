package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"econglobe.io/explorer/internal/catalog"
)

var (
	ErrSelectionIncomplete = errors.New("select two countries to compare")
	ErrSameCountry         = errors.New("choose two different countries")
	ErrTurnInFlight        = errors.New("a request is already in progress")
	ErrNoAnalysis          = errors.New("run an analysis before chatting")
	ErrSessionReset        = errors.New("comparison was reset")
)

const (
	comparisonPromptFormat = "Provide a concise economic comparison between %s and %s. " +
		"Focus on key indicators like GDP, inflation, and population growth. " +
		"Present the comparison in a clear, easy-to-read format using Markdown for formatting. " +
		"Start with a clear heading. " +
		"Do not include any introductory or concluding sentences outside of the main comparison."

	analystFraming = "You are a helpful economic analyst. The user has just received the following analysis. " +
		"Answer their follow-up questions based on this context."
)

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseLoading     Phase = "loading"
	PhaseReady       Phase = "ready"
	PhaseFailed      Phase = "failed"
	PhaseChatPending Phase = "chat_pending"
)

type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(s)) {
	case SideA:
		return SideA, nil
	case SideB:
		return SideB, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// ComparisonSnapshot is a copy of a session's state for rendering.
type ComparisonSnapshot struct {
	Phase      Phase            `json:"phase"`
	CountryA   *catalog.Country `json:"countryA,omitempty"`
	CountryB   *catalog.Country `json:"countryB,omitempty"`
	Result     string           `json:"result,omitempty"`
	Transcript []ChatMessage    `json:"transcript"`
}

// ComparisonSession compares two countries and then answers follow-up
// questions about the result. Calls to the model happen without the lock
// held; a generation counter discards replies that arrive after a Reset or
// a new selection.
type ComparisonSession struct {
	completer Completer
	logger    *zap.Logger

	mu         sync.Mutex
	phase      Phase
	countryA   *catalog.Country
	countryB   *catalog.Country
	result     string
	transcript []ChatMessage
	generation uint64
	cancel     context.CancelFunc
}

func NewComparisonSession(completer Completer, logger *zap.Logger) *ComparisonSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComparisonSession{completer: completer, logger: logger, phase: PhaseIdle}
}

// SelectCountry sets one side of the comparison. Any previous result and
// transcript are discarded.
func (s *ComparisonSession) SelectCountry(side Side, country catalog.Country) (ComparisonSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	other := s.countryB
	if side == SideB {
		other = s.countryA
	}
	if other != nil && other.ID == country.ID {
		return s.snapshotLocked(), ErrSameCountry
	}

	s.invalidateLocked()
	if side == SideA {
		s.countryA = &country
	} else {
		s.countryB = &country
	}
	return s.snapshotLocked(), nil
}

// Analyze asks for the comparison of the two selected countries. A failed
// call is not an error: the session moves to PhaseFailed with a fixed
// message and an empty transcript.
func (s *ComparisonSession) Analyze(ctx context.Context) (ComparisonSnapshot, error) {
	s.mu.Lock()
	if s.countryA == nil || s.countryB == nil {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrSelectionIncomplete
	}
	if s.busyLocked() {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrTurnInFlight
	}
	s.phase = PhaseLoading
	s.result = ""
	s.transcript = nil
	prompt := fmt.Sprintf(comparisonPromptFormat, s.countryA.Name, s.countryB.Name)
	callCtx, gen := s.beginLocked(ctx)
	s.mu.Unlock()

	reply, err := s.completer.Complete(callCtx, []ChatMessage{UserMessage(prompt)})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finishLocked(gen) {
		return s.snapshotLocked(), ErrSessionReset
	}
	if err != nil {
		s.logger.Warn("comparison analysis failed", zap.Error(err))
		s.phase = PhaseFailed
		s.result = MsgAnalysisFailed
		s.transcript = nil
		return s.snapshotLocked(), nil
	}
	s.phase = PhaseReady
	s.result = reply
	s.transcript = []ChatMessage{SystemMessage(analystFraming), AssistantMessage(reply)}
	return s.snapshotLocked(), nil
}

// SendChatTurn asks a follow-up question. The whole transcript is sent every
// turn. A failed call appends MsgCompareChatFailed instead of a reply, so the
// returned error only reports misuse. Blank questions are ignored.
func (s *ComparisonSession) SendChatTurn(ctx context.Context, text string) (ComparisonSnapshot, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if text == "" {
		defer s.mu.Unlock()
		return s.snapshotLocked(), nil
	}
	if s.busyLocked() {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrTurnInFlight
	}
	if s.phase != PhaseReady {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrNoAnalysis
	}
	s.transcript = append(s.transcript, UserMessage(text))
	s.phase = PhaseChatPending
	messages := slices.Clone(s.transcript)
	callCtx, gen := s.beginLocked(ctx)
	s.mu.Unlock()

	reply, err := s.completer.Complete(callCtx, messages)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finishLocked(gen) {
		return s.snapshotLocked(), ErrSessionReset
	}
	if err != nil {
		s.logger.Warn("comparison chat turn failed", zap.Error(err))
		reply = MsgCompareChatFailed
	}
	s.transcript = append(s.transcript, AssistantMessage(reply))
	s.phase = PhaseReady
	return s.snapshotLocked(), nil
}

// Reset returns the session to idle and cancels any call in flight.
func (s *ComparisonSession) Reset() ComparisonSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
	s.countryA = nil
	s.countryB = nil
	return s.snapshotLocked()
}

func (s *ComparisonSession) Snapshot() ComparisonSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ComparisonSession) busyLocked() bool {
	return s.phase == PhaseLoading || s.phase == PhaseChatPending
}

func (s *ComparisonSession) beginLocked(ctx context.Context) (context.Context, uint64) {
	callCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return callCtx, s.generation
}

// finishLocked reports whether the call started at gen is still current.
func (s *ComparisonSession) finishLocked(gen uint64) bool {
	if gen != s.generation {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

func (s *ComparisonSession) invalidateLocked() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.phase = PhaseIdle
	s.result = ""
	s.transcript = nil
}

func (s *ComparisonSession) snapshotLocked() ComparisonSnapshot {
	snap := ComparisonSnapshot{
		Phase:      s.phase,
		Result:     s.result,
		Transcript: slices.Clone(s.transcript),
	}
	if snap.Transcript == nil {
		snap.Transcript = []ChatMessage{}
	}
	if s.countryA != nil {
		a := *s.countryA
		snap.CountryA = &a
	}
	if s.countryB != nil {
		b := *s.countryB
		snap.CountryB = &b
	}
	return snap
}
