package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/store"
)

var (
	france = catalog.Country{ID: "FRA", ISO2Code: "FR", Name: "France"}
	japan  = catalog.Country{ID: "JPN", ISO2Code: "JP", Name: "Japan"}
	gdp    = catalog.Indicator{ID: "NY.GDP.MKTP.CD", Name: "GDP (Current US$)"}
)

// recorder is a Completer that records every conversation it is sent.
type recorder struct {
	mu    sync.Mutex
	calls [][]ChatMessage
	reply func(ctx context.Context, n int, msgs []ChatMessage) (string, error)
}

func (r *recorder) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]ChatMessage(nil), msgs...))
	n := len(r.calls)
	r.mu.Unlock()
	if r.reply == nil {
		return "ok", nil
	}
	return r.reply(ctx, n, msgs)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) call(i int) []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func replies(texts ...string) func(context.Context, int, []ChatMessage) (string, error) {
	return func(_ context.Context, n int, _ []ChatMessage) (string, error) {
		return texts[n-1], nil
	}
}

func readySession(t *testing.T, r *recorder) *ComparisonSession {
	t.Helper()
	s := NewComparisonSession(r, nil)
	_, err := s.SelectCountry(SideA, france)
	require.NoError(t, err)
	_, err = s.SelectCountry(SideB, japan)
	require.NoError(t, err)
	snap, err := s.Analyze(context.Background())
	require.NoError(t, err)
	require.Equal(t, PhaseReady, snap.Phase)
	return s
}

func TestOpenAIClientSendsConversation(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"# France vs Japan"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "", srv.Client(), nil)
	msgs := []ChatMessage{SystemMessage("frame"), UserMessage("hi")}
	reply, err := c.Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "# France vs Japan", reply)
	assert.Equal(t, DefaultOpenAIModel, got.Model)
	if diff := cmp.Diff(msgs, got.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenAIClientFailureModes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{name: "empty choices", status: 200, body: `{"choices":[]}`, want: MsgNoValidResponse},
		{name: "server error", status: 500, body: `{}`, wantErr: true},
		{name: "malformed", status: 200, body: `not json`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			reply, err := NewOpenAIClient("sk-test", srv.URL, "", srv.Client(), nil).
				Complete(context.Background(), []ChatMessage{UserMessage("hi")})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrChatService)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestOpenAIClientPlaceholderKeyMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	for _, key := range []string{"", "YOUR_CHATGPT_API_KEY_HERE"} {
		c := NewOpenAIClient(key, srv.URL, "", srv.Client(), nil)
		assert.False(t, c.Configured())
		reply, err := c.Complete(context.Background(), []ChatMessage{UserMessage("hi")})
		require.NoError(t, err)
		assert.Equal(t, MsgMissingAPIKey, reply)
	}
	assert.Zero(t, hits.Load())
}

func TestOpenAIClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewOpenAIClient("sk-test", url, "", nil, nil).Complete(context.Background(), []ChatMessage{UserMessage("hi")})
	assert.ErrorIs(t, err, ErrChatService)
}

func TestToGeminiContents(t *testing.T) {
	system, history, last, err := toGeminiContents([]ChatMessage{
		SystemMessage("frame"),
		AssistantMessage("analysis"),
		UserMessage("why?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "frame", system)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, []genai.Part{genai.Text(geminiOpeningTurn)}, history[0].Parts)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("analysis")}, history[1].Parts)
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, []genai.Part{genai.Text("why?")}, last.Parts)

	_, history, _, err = toGeminiContents([]ChatMessage{UserMessage("a"), AssistantMessage("b"), UserMessage("c")})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []genai.Part{genai.Text("a")}, history[0].Parts, "no opening turn when the user spoke first")

	_, _, _, err = toGeminiContents([]ChatMessage{UserMessage("a"), AssistantMessage("b")})
	assert.Error(t, err)
	_, _, _, err = toGeminiContents(nil)
	assert.Error(t, err)
}

func TestGeminiWithoutKeyAnswersWithFixedText(t *testing.T) {
	for _, key := range []string{"", "  ", "YOUR_GEMINI_API_KEY_HERE"} {
		g, err := NewGeminiClient(context.Background(), key, "", nil)
		require.NoError(t, err, "key %q", key)
		assert.False(t, g.Configured())

		reply, err := g.Complete(context.Background(), []ChatMessage{UserMessage("hi")})
		require.NoError(t, err)
		assert.Equal(t, MsgMissingGeminiKey, reply)
		g.Close()
	}
}

func TestAnalyzeNeedsBothCountries(t *testing.T) {
	r := &recorder{}
	s := NewComparisonSession(r, nil)

	_, err := s.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrSelectionIncomplete)

	_, err = s.SelectCountry(SideA, france)
	require.NoError(t, err)
	_, err = s.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrSelectionIncomplete)
	assert.Zero(t, r.count())

	_, err = s.SelectCountry(SideB, france)
	assert.ErrorIs(t, err, ErrSameCountry)
}

func TestAnalyzeSeedsTranscript(t *testing.T) {
	r := &recorder{reply: replies("## France vs Japan")}
	s := readySession(t, r)

	require.Equal(t, 1, r.count())
	prompt := r.call(0)
	require.Len(t, prompt, 1)
	assert.Equal(t, RoleUser, prompt[0].Role)
	assert.Equal(t, "Provide a concise economic comparison between France and Japan. "+
		"Focus on key indicators like GDP, inflation, and population growth. "+
		"Present the comparison in a clear, easy-to-read format using Markdown for formatting. "+
		"Start with a clear heading. "+
		"Do not include any introductory or concluding sentences outside of the main comparison.", prompt[0].Content)

	snap := s.Snapshot()
	assert.Equal(t, "## France vs Japan", snap.Result)
	want := []ChatMessage{SystemMessage(analystFraming), AssistantMessage("## France vs Japan")}
	if diff := cmp.Diff(want, snap.Transcript); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeFailure(t *testing.T) {
	r := &recorder{reply: func(context.Context, int, []ChatMessage) (string, error) {
		return "", ErrChatService
	}}
	s := NewComparisonSession(r, nil)
	s.SelectCountry(SideA, france)
	s.SelectCountry(SideB, japan)

	snap, err := s.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.Equal(t, "There was an error processing the analysis.", snap.Result)
	assert.Empty(t, snap.Transcript)

	_, err = s.SendChatTurn(context.Background(), "why?")
	assert.ErrorIs(t, err, ErrNoAnalysis)
}

func TestChatTurnsResendWholeTranscript(t *testing.T) {
	r := &recorder{reply: func(_ context.Context, n int, _ []ChatMessage) (string, error) {
		switch n {
		case 1:
			return "analysis", nil
		case 2:
			return "answer one", nil
		default:
			return "", errors.New("boom")
		}
	}}
	s := readySession(t, r)
	ctx := context.Background()

	snap, err := s.SendChatTurn(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, snap.Transcript, 2)
	assert.Equal(t, 1, r.count(), "blank input is ignored")

	snap, err = s.SendChatTurn(ctx, "first?")
	require.NoError(t, err)
	assert.Len(t, r.call(1), 3)
	assert.Equal(t, AssistantMessage("answer one"), snap.Transcript[3])

	snap, err = s.SendChatTurn(ctx, "second?")
	require.NoError(t, err)
	assert.Len(t, r.call(2), 5)
	assert.Equal(t, UserMessage("second?"), r.call(2)[4])
	assert.Equal(t, AssistantMessage("Sorry, I encountered an error. Please try again."), snap.Transcript[5])
	assert.Equal(t, PhaseReady, snap.Phase)
}

func TestConcurrentTurnIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	r := &recorder{reply: func(_ context.Context, n int, _ []ChatMessage) (string, error) {
		if n == 1 {
			return "analysis", nil
		}
		close(started)
		<-release
		return "answer", nil
	}}
	s := readySession(t, r)

	done := make(chan ComparisonSnapshot)
	go func() {
		snap, _ := s.SendChatTurn(context.Background(), "first?")
		done <- snap
	}()
	<-started

	assert.Equal(t, PhaseChatPending, s.Snapshot().Phase)
	_, err := s.SendChatTurn(context.Background(), "second?")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	_, err = s.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrTurnInFlight)

	close(release)
	snap := <-done
	assert.Len(t, snap.Transcript, 4)
	assert.Equal(t, 2, r.count())
}

func TestResetDiscardsInFlightReply(t *testing.T) {
	started := make(chan struct{})
	r := &recorder{reply: func(ctx context.Context, n int, _ []ChatMessage) (string, error) {
		close(started)
		<-ctx.Done()
		return "late", ctx.Err()
	}}
	s := NewComparisonSession(r, nil)
	s.SelectCountry(SideA, france)
	s.SelectCountry(SideB, japan)

	errc := make(chan error)
	go func() {
		_, err := s.Analyze(context.Background())
		errc <- err
	}()
	<-started

	snap := s.Reset()
	assert.Equal(t, PhaseIdle, snap.Phase)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSessionReset)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call was not cancelled")
	}

	snap = s.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Result)
	assert.Nil(t, snap.CountryA)
	assert.Nil(t, snap.CountryB)
}

func TestSelectCountryClearsResult(t *testing.T) {
	s := readySession(t, &recorder{})

	snap, err := s.SelectCountry(SideB, catalog.Country{ID: "BRA", Name: "Brazil"})
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Result)
	assert.Empty(t, snap.Transcript)
	assert.Equal(t, "France", snap.CountryA.Name)
	assert.Equal(t, "Brazil", snap.CountryB.Name)
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide("A")
	require.NoError(t, err)
	assert.Equal(t, SideA, side)
	_, err = ParseSide("c")
	assert.Error(t, err)
}

func TestAdvisorPromptAndTranscript(t *testing.T) {
	r := &recorder{reply: replies("Try Germany.")}
	a := NewDashboardAdvisor(r, nil)
	items := []store.SavedItem{
		{Type: store.ItemCountry, Country: france},
		{Type: store.ItemChart, Country: japan, Indicator: &gdp},
	}

	assert.Equal(t, "France, Japan - GDP (Current US$)", DashboardSummary(items))

	out := a.Suggest(context.Background(), nil, items, "What next?")
	require.Equal(t, 1, r.count())
	sent := r.call(0)
	require.Len(t, sent, 1)
	assert.Equal(t, "Based on the user's current dashboard which includes items for: France, Japan - GDP (Current US$). "+
		"The user is asking the following question: \"What next?\". "+
		"Provide a thoughtful and relevant answer. "+
		"If they ask for recommendations, suggest a few specific countries or economic indicators "+
		"they might find interesting and briefly explain why.", sent[0].Content)
	assert.Equal(t, []ChatMessage{UserMessage("What next?"), AssistantMessage("Try Germany.")}, out)
}

func TestAdvisorNoOpsAndFailure(t *testing.T) {
	r := &recorder{reply: func(context.Context, int, []ChatMessage) (string, error) {
		return "", ErrChatService
	}}
	a := NewDashboardAdvisor(r, nil)
	items := []store.SavedItem{{Type: store.ItemCountry, Country: france}}
	prior := []ChatMessage{UserMessage("q"), AssistantMessage("a")}

	assert.Equal(t, prior, a.Suggest(context.Background(), prior, items, "   "))
	assert.Equal(t, prior, a.Suggest(context.Background(), prior, nil, "hello"))
	assert.Zero(t, r.count())

	out := a.Suggest(context.Background(), prior, items, "hello")
	require.Len(t, out, 4)
	assert.Equal(t, AssistantMessage("Sorry, I encountered an error."), out[3])
	assert.Len(t, prior, 2, "input transcript is not modified")
}

func TestSessionsAreScopedAndDroppable(t *testing.T) {
	sessions := NewSessions(&recorder{reply: replies("one", "two")}, nil)
	items := []store.SavedItem{{Type: store.ItemCountry, Country: france}}

	c := sessions.Comparison("sid-1")
	assert.Same(t, c, sessions.Comparison("sid-1"))
	assert.NotSame(t, c, sessions.Comparison("sid-2"))

	c.SelectCountry(SideA, france)
	sessions.DropComparison("sid-1")
	assert.Nil(t, sessions.Comparison("sid-1").Snapshot().CountryA)

	chat := sessions.Advisor("sid-1")
	got, err := chat.Ask(context.Background(), items, "q1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	got, err = chat.Ask(context.Background(), items, "q2")
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Len(t, chat.Transcript(), 4)

	sessions.DropAdvisor("sid-1")
	assert.Empty(t, sessions.Advisor("sid-1").Transcript())
}
