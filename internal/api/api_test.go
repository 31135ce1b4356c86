package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econglobe.io/explorer/internal/auth"
	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/core"
	"econglobe.io/explorer/internal/dashboard"
	"econglobe.io/explorer/internal/state"
	"econglobe.io/explorer/internal/store"
)

type fakeCatalog struct {
	countries []catalog.Country
	down      bool
}

func (f *fakeCatalog) ListCountries(context.Context) ([]catalog.Country, error) {
	if f.down {
		return nil, catalog.ErrCatalogUnavailable
	}
	return f.countries, nil
}

func (f *fakeCatalog) ListIndicators(string) []catalog.Indicator {
	return append([]catalog.Indicator(nil), catalog.Indicators...)
}

func (f *fakeCatalog) Chart(_ context.Context, _ string, ind catalog.Indicator) (catalog.ChartSeries, error) {
	if f.down {
		return catalog.ChartSeries{}, catalog.ErrCatalogUnavailable
	}
	v := 42.0
	return catalog.ChartSeries{Name: ind.Name, Series: []catalog.ChartDataPoint{{Name: "2020", Value: &v}}}, nil
}

type spyUsers struct {
	*store.SQLStore
	creates atomic.Int32
}

func (s *spyUsers) CreateUser(ctx context.Context, email, name, hash string) (*store.User, error) {
	s.creates.Add(1)
	return s.SQLStore.CreateUser(ctx, email, name, hash)
}

type cannedCompleter struct{ calls atomic.Int32 }

func (c *cannedCompleter) Complete(_ context.Context, msgs []core.ChatMessage) (string, error) {
	c.calls.Add(1)
	return "reply to " + msgs[len(msgs)-1].Content, nil
}

type harness struct {
	router  http.Handler
	catalog *fakeCatalog
	users   *spyUsers
	chat    *cannedCompleter
	sid     *http.Cookie
}

func newHarness(t *testing.T, ratePerMinute float64) *harness {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat := &fakeCatalog{countries: []catalog.Country{
		{ID: "FRA", ISO2Code: "FR", Name: "France"},
		{ID: "FIN", ISO2Code: "FI", Name: "Finland"},
		{ID: "JPN", ISO2Code: "JP", Name: "Japan"},
	}}
	users := &spyUsers{SQLStore: db}
	chat := &cannedCompleter{}

	h := NewHandler(Deps{
		Catalog:         cat,
		Auth:            auth.NewService(users, auth.NewTokenIssuer("test-secret", time.Hour), auth.NewMemoryRevoker(), nil),
		Presence:        auth.NewPresence(),
		Dashboard:       dashboard.NewService(db, dashboard.NewLocalHub(), cat, nil),
		Sessions:        core.NewSessions(chat, nil),
		AIRatePerMinute: ratePerMinute,
	})
	return &harness{router: NewRouter(h), catalog: cat, users: users, chat: chat}
}

// do sends a request as the harness's browser session, adopting the session
// cookie the server hands out.
func (hs *harness) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case url.Values:
		reader = bytes.NewReader([]byte(b.Encode()))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if _, ok := body.(url.Values); ok {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if hs.sid != nil {
		req.AddCookie(hs.sid)
	}
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			hs.sid = c
		}
	}
	return rec
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (hs *harness) register(t *testing.T) auth.Session {
	t.Helper()
	rec := hs.do(t, http.MethodPost, "/api/auth/register", auth.RegisterForm{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		Password: "engine1", ConfirmPassword: "engine1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[auth.Session](t, rec)
}

func TestDashboardPageRedirectsSignedOutVisitors(t *testing.T) {
	hs := newHarness(t, 20)

	rec := hs.do(t, http.MethodGet, "/dashboard", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	sess := hs.register(t)
	rec = hs.do(t, http.MethodGet, "/dashboard", nil, bearer(sess.Token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ada's dashboard")
}

func TestUnknownPathsRedirectHome(t *testing.T) {
	hs := newHarness(t, 20)

	rec := hs.do(t, http.MethodGet, "/no/such/page", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = hs.do(t, http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPagesRender(t *testing.T) {
	hs := newHarness(t, 20)
	for _, path := range []string{"/", "/compare", "/login", "/register"} {
		rec := hs.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html", path)
	}
}

func TestRegisterFormMismatchNeverReachesStore(t *testing.T) {
	hs := newHarness(t, 20)

	rec := hs.do(t, http.MethodPost, "/register", url.Values{
		"firstName":       {"Ada"},
		"lastName":        {"Lovelace"},
		"email":           {"ada@example.com"},
		"password":        {"engine1"},
		"confirmPassword": {"engine2"},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match.")
	assert.Zero(t, hs.users.creates.Load())
}

func TestRegisterFormSuccessAndDuplicate(t *testing.T) {
	hs := newHarness(t, 20)
	form := url.Values{
		"firstName":       {"Ada"},
		"lastName":        {"Lovelace"},
		"email":           {"ada@example.com"},
		"password":        {"engine1"},
		"confirmPassword": {"engine1"},
	}

	rec := hs.do(t, http.MethodPost, "/register", form, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = hs.do(t, http.MethodPost, "/register", form, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "This email address is already in use.")
}

func TestLoginFormSetsTokenCookie(t *testing.T) {
	hs := newHarness(t, 20)
	hs.register(t)

	rec := hs.do(t, http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"wrong1"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), auth.MsgInvalidLogin)

	rec = hs.do(t, http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"engine1"}}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	var token *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenCookie {
			token = c
		}
	}
	require.NotNil(t, token)
	assert.True(t, token.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(token)
	got := httptest.NewRecorder()
	hs.router.ServeHTTP(got, req)
	me := decode[map[string]*store.User](t, got)
	require.NotNil(t, me["user"])
	assert.Equal(t, "Ada", me["user"].DisplayName)
}

func TestDashboardAPIFlow(t *testing.T) {
	hs := newHarness(t, 20)

	rec := hs.do(t, http.MethodPost, "/api/dashboard/countries", saveRequest{CountryID: "FRA"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	sess := hs.register(t)
	hdr := bearer(sess.Token)

	rec = hs.do(t, http.MethodPost, "/api/dashboard/countries", saveRequest{CountryID: "FRA"}, hdr)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "'France' saved to dashboard!", decode[saveResponse](t, rec).Message)

	rec = hs.do(t, http.MethodPost, "/api/dashboard/charts", saveRequest{CountryID: "JPN", IndicatorID: "NY.GDP.MKTP.CD"}, hdr)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "'GDP (Current US$)' chart saved!", decode[saveResponse](t, rec).Message)

	rec = hs.do(t, http.MethodPost, "/api/dashboard/charts", saveRequest{CountryID: "JPN", IndicatorID: "BOGUS"}, hdr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(t, http.MethodGet, "/api/dashboard/items", nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]dashboard.DashboardItem](t, rec)
	require.Len(t, items, 2)

	var countryItem, chartItem dashboard.DashboardItem
	for _, it := range items {
		if it.Type == store.ItemChart {
			chartItem = it
		} else {
			countryItem = it
		}
	}
	assert.Len(t, countryItem.Indicators, 4)
	assert.Nil(t, countryItem.ActiveChart)
	require.NotNil(t, chartItem.ActiveChart)
	assert.Equal(t, "GDP (Current US$)", chartItem.ActiveIndicatorName)

	rec = hs.do(t, http.MethodPost, "/api/dashboard/items/"+countryItem.ID+"/chart", toggleRequest{IndicatorID: "SP.POP.TOTL"}, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	toggled := decode[dashboard.DashboardItem](t, rec)
	require.NotNil(t, toggled.ActiveChart)
	assert.Equal(t, "Population, Total", toggled.ActiveIndicatorName)

	rec = hs.do(t, http.MethodPost, "/api/dashboard/items/"+countryItem.ID+"/chart",
		toggleRequest{IndicatorID: "SP.POP.TOTL", ActiveIndicatorID: "SP.POP.TOTL"}, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[dashboard.DashboardItem](t, rec).ActiveChart)

	rec = hs.do(t, http.MethodPost, "/api/dashboard/chat", chatRequest{Text: "What next?"}, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	transcript := decode[transcriptResponse](t, rec).Transcript
	require.Len(t, transcript, 2)
	assert.Equal(t, core.UserMessage("What next?"), transcript[0])

	rec = hs.do(t, http.MethodGet, "/api/dashboard/chat", nil, hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, transcript, decode[transcriptResponse](t, rec).Transcript)

	rec = hs.do(t, http.MethodDelete, "/api/dashboard/items/"+countryItem.ID, nil, hdr)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = hs.do(t, http.MethodDelete, "/api/dashboard/items/"+countryItem.ID, nil, hdr)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = hs.do(t, http.MethodPost, "/api/dashboard/items/"+countryItem.ID+"/chart", toggleRequest{IndicatorID: "SP.POP.TOTL"}, hdr)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = hs.do(t, http.MethodPost, "/api/auth/logout", nil, hdr)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = hs.do(t, http.MethodGet, "/api/dashboard/items", nil, hdr)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthReportsSessions(t *testing.T) {
	hs := newHarness(t, 20)

	hs.do(t, http.MethodGet, "/api/selection", nil, nil)
	rec := hs.do(t, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 1, got.Sessions)
}

func TestLogoutDropsSelectionState(t *testing.T) {
	hs := newHarness(t, 20)
	sess := hs.register(t)

	rec := hs.do(t, http.MethodPost, "/api/selection/select", selectRequest{CountryID: "FRA"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[healthResponse](t, hs.do(t, http.MethodGet, "/api/health", nil, nil)).Sessions)

	rec = hs.do(t, http.MethodPost, "/api/auth/logout", nil, bearer(sess.Token))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, decode[healthResponse](t, hs.do(t, http.MethodGet, "/api/health", nil, nil)).Sessions)

	rec = hs.do(t, http.MethodGet, "/api/selection", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, state.Selection{}, decode[state.Selection](t, rec))
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthFailsWhenDatabaseIsDown(t *testing.T) {
	h := NewHandler(Deps{Catalog: &fakeCatalog{}, DB: downDB{}, Presence: auth.NewPresence()})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestToggleForeignItemIsNotFound(t *testing.T) {
	hs := newHarness(t, 20)
	owner := hs.register(t)
	rec := hs.do(t, http.MethodPost, "/api/dashboard/countries", saveRequest{CountryID: "FRA"}, bearer(owner.Token))
	require.Equal(t, http.StatusCreated, rec.Code)
	itemID := decode[saveResponse](t, rec).ID

	other := &harness{router: hs.router}
	rec = other.do(t, http.MethodPost, "/api/auth/register", auth.RegisterForm{
		FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com",
		Password: "secret1", ConfirmPassword: "secret1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	intruder := decode[auth.Session](t, rec)

	rec = other.do(t, http.MethodPost, "/api/dashboard/items/"+itemID+"/chart", toggleRequest{IndicatorID: "SP.POP.TOTL"}, bearer(intruder.Token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterAPIValidation(t *testing.T) {
	hs := newHarness(t, 20)

	rec := hs.do(t, http.MethodPost, "/api/auth/register", auth.RegisterForm{
		FirstName: "Ada", LastName: "Lovelace", Email: "nope", Password: "abc", ConfirmPassword: "abc",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[apiError](t, rec)
	assert.Contains(t, body.Fields, "email")
	assert.Contains(t, body.Fields, "password")
	assert.Zero(t, hs.users.creates.Load())
}

func TestRegisterAPIRejectsOverlongPassword(t *testing.T) {
	hs := newHarness(t, 20)
	long := strings.Repeat("x", 80)
	rec := hs.do(t, http.MethodPost, "/api/auth/register", auth.RegisterForm{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		Password: long, ConfirmPassword: long,
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, decode[apiError](t, rec).Fields, "password")
	assert.EqualValues(t, 0, hs.users.creates.Load())
}

func TestUpdateProfile(t *testing.T) {
	hs := newHarness(t, 20)
	sess := hs.register(t)

	rec := hs.do(t, http.MethodPut, "/api/auth/profile", profileRequest{DisplayName: "Countess"}, bearer(sess.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Countess", decode[map[string]*store.User](t, rec)["user"].DisplayName)

	rec = hs.do(t, http.MethodPut, "/api/auth/profile", profileRequest{DisplayName: "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCountriesSearchAndExclude(t *testing.T) {
	hs := newHarness(t, 20)

	rec := hs.do(t, http.MethodGet, "/api/countries?q=f&exclude=FIN", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]catalog.Country](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "France", got[0].Name)

	rec = hs.do(t, http.MethodGet, "/api/countries/FRA/indicators", nil, nil)
	assert.Len(t, decode[[]catalog.Indicator](t, rec), 4)

	rec = hs.do(t, http.MethodGet, "/api/countries/FRA/indicators/SP.POP.TOTL", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Population, Total", decode[catalog.ChartSeries](t, rec).Name)

	rec = hs.do(t, http.MethodGet, "/api/countries/FRA/indicators/NOPE", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogOutageIsBadGateway(t *testing.T) {
	hs := newHarness(t, 20)
	hs.catalog.down = true

	rec := hs.do(t, http.MethodGet, "/api/countries", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "catalog_unavailable", decode[apiError](t, rec).Code)
}

func TestSelectionTransitions(t *testing.T) {
	hs := newHarness(t, 20)

	rec := hs.do(t, http.MethodGet, "/api/selection", nil, nil)
	assert.Equal(t, state.Selection{}, decode[state.Selection](t, rec))

	rec = hs.do(t, http.MethodPost, "/api/selection/select", selectRequest{CountryID: "JPN"}, nil)
	sel := decode[state.Selection](t, rec)
	assert.True(t, sel.PanelOpen)
	require.NotNil(t, sel.SelectedCountry)
	assert.Equal(t, "Japan", sel.SelectedCountry.Name)

	rec = hs.do(t, http.MethodPost, "/api/selection/back", nil, nil)
	sel = decode[state.Selection](t, rec)
	assert.True(t, sel.PanelOpen)
	assert.Nil(t, sel.SelectedCountry)

	rec = hs.do(t, http.MethodPost, "/api/selection/close", nil, nil)
	assert.Equal(t, state.Selection{}, decode[state.Selection](t, rec))

	rec = hs.do(t, http.MethodPost, "/api/selection/open", nil, nil)
	assert.True(t, decode[state.Selection](t, rec).PanelOpen)

	rec = hs.do(t, http.MethodPost, "/api/selection/select", selectRequest{CountryID: "XXX"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareFlow(t *testing.T) {
	hs := newHarness(t, 20)

	rec := hs.do(t, http.MethodPost, "/api/compare/analyze", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(t, http.MethodPost, "/api/compare/select", compareSelectRequest{Side: "a", CountryID: "FRA"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = hs.do(t, http.MethodPost, "/api/compare/select", compareSelectRequest{Side: "b", CountryID: "FRA"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = hs.do(t, http.MethodPost, "/api/compare/select", compareSelectRequest{Side: "b", CountryID: "JPN"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = hs.do(t, http.MethodPost, "/api/compare/analyze", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[core.ComparisonSnapshot](t, rec)
	assert.Equal(t, core.PhaseReady, snap.Phase)
	assert.True(t, strings.HasPrefix(snap.Result, "reply to Provide a concise economic comparison between France and Japan."))

	rec = hs.do(t, http.MethodPost, "/api/compare/chat", chatRequest{Text: "Why?"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decode[core.ComparisonSnapshot](t, rec)
	assert.Len(t, snap.Transcript, 4)
	assert.Equal(t, "reply to Why?", snap.Transcript[3].Content)

	rec = hs.do(t, http.MethodPost, "/api/compare/reset", nil, nil)
	assert.Equal(t, core.PhaseIdle, decode[core.ComparisonSnapshot](t, rec).Phase)

	hs.do(t, http.MethodPost, "/api/compare/select", compareSelectRequest{Side: "a", CountryID: "FRA"}, nil)
	hs.do(t, http.MethodGet, "/compare", nil, nil)
	rec = hs.do(t, http.MethodGet, "/api/compare", nil, nil)
	assert.Nil(t, decode[core.ComparisonSnapshot](t, rec).CountryA, "visiting the page starts over")
}

func TestAIEndpointsAreRateLimited(t *testing.T) {
	hs := newHarness(t, 1)

	rec := hs.do(t, http.MethodPost, "/api/compare/analyze", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = hs.do(t, http.MethodPost, "/api/compare/analyze", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = hs.do(t, http.MethodGet, "/api/compare", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "non-AI endpoints are not limited")
}

func TestSessionLimiterForgetsIdleSessions(t *testing.T) {
	l := newSessionLimiter(60)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	now = now.Add(limiterIdle + time.Minute)
	assert.True(t, l.allow("b"))
	assert.NotContains(t, l.entries, "a")
}

func TestSelectionWatchStreamsChanges(t *testing.T) {
	hs := newHarness(t, 20)
	srv := httptest.NewServer(hs.router)
	defer srv.Close()

	hs.do(t, http.MethodGet, "/api/selection", nil, nil)
	require.NotNil(t, hs.sid)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/selection/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Cookie": {hs.sid.String()}})
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var sel state.Selection
	require.NoError(t, conn.ReadJSON(&sel))
	assert.Equal(t, state.Selection{}, sel)

	hs.do(t, http.MethodPost, "/api/selection/select", selectRequest{CountryID: "FRA"}, nil)
	require.NoError(t, conn.ReadJSON(&sel))
	require.NotNil(t, sel.SelectedCountry)
	assert.Equal(t, "France", sel.SelectedCountry.Name)
}

func TestDashboardWatchFollowsSignIn(t *testing.T) {
	hs := newHarness(t, 20)
	srv := httptest.NewServer(hs.router)
	defer srv.Close()

	hs.do(t, http.MethodGet, "/", nil, nil)
	require.NotNil(t, hs.sid)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/dashboard/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Cookie": {hs.sid.String()}})
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var items []dashboard.DashboardItem
	require.NoError(t, conn.ReadJSON(&items))
	assert.Empty(t, items)

	sess := hs.register(t)
	require.NoError(t, conn.ReadJSON(&items))
	assert.Empty(t, items)

	hs.do(t, http.MethodPost, "/api/dashboard/countries", saveRequest{CountryID: "FRA"}, bearer(sess.Token))
	require.NoError(t, conn.ReadJSON(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "France", items[0].Country.Name)
}
