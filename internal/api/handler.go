// Package api serves the explorer's pages and JSON API.
package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"econglobe.io/explorer/internal/auth"
	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/core"
	"econglobe.io/explorer/internal/dashboard"
	"econglobe.io/explorer/internal/state"
)

// Catalog is the World Bank access the handlers need.
type Catalog interface {
	ListCountries(ctx context.Context) ([]catalog.Country, error)
	ListIndicators(countryID string) []catalog.Indicator
	Chart(ctx context.Context, countryID string, indicator catalog.Indicator) (catalog.ChartSeries, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Catalog         Catalog
	DB              Pinger
	Auth            *auth.Service
	Presence        *auth.Presence
	Dashboard       *dashboard.Service
	Sessions        *core.Sessions
	Logger          *zap.Logger
	AIRatePerMinute float64
	CookieSecure    bool
}

type Handler struct {
	catalog      Catalog
	db           Pinger
	auth         *auth.Service
	presence     *auth.Presence
	selections   *state.Registry[*state.SelectionState]
	dashboard    *dashboard.Service
	sessions     *core.Sessions
	limiter      *sessionLimiter
	pages        *pageSet
	logger       *zap.Logger
	cookieSecure bool
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	perMinute := d.AIRatePerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	return &Handler{
		catalog:      d.Catalog,
		db:           d.DB,
		auth:         d.Auth,
		presence:     d.Presence,
		selections:   state.NewRegistry(state.NewSelectionState),
		dashboard:    d.Dashboard,
		sessions:     d.Sessions,
		limiter:      newSessionLimiter(perMinute),
		pages:        mustLoadPages(),
		logger:       logger,
		cookieSecure: d.CookieSecure,
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// Health reports the database reachability and how many browser sessions
// hold selection state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: h.selections.Len()})
}

// findCountry fetches the catalog and resolves id in it.
func (h *Handler) findCountry(ctx context.Context, id string) (catalog.Country, error) {
	countries, err := h.catalog.ListCountries(ctx)
	if err != nil {
		return catalog.Country{}, err
	}
	c, ok := catalog.FindCountry(countries, id)
	if !ok {
		return catalog.Country{}, badRequest("unknown country %q", id)
	}
	return c, nil
}
