package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/core"
	"econglobe.io/explorer/internal/dashboard"
	"econglobe.io/explorer/internal/store"
)

type saveRequest struct {
	CountryID   string `json:"countryId"`
	IndicatorID string `json:"indicatorId,omitempty"`
}

type saveResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (h *Handler) ListDashboardItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.dashboard.Items(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shaped, err := h.dashboard.Shape(r.Context(), items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shaped)
}

func (h *Handler) SaveCountry(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	country, err := h.findCountry(r.Context(), req.CountryID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.dashboard.AddCountry(r.Context(), currentUser(r), country)
	if err != nil {
		h.saveFailed(w, r, err, dashboard.MsgCountrySaveFailed)
		return
	}
	writeJSON(w, http.StatusCreated, saveResponse{ID: id, Message: dashboard.CountrySavedMessage(country.Name)})
}

func (h *Handler) SaveChart(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	indicator, ok := catalog.LookupIndicator(req.IndicatorID)
	if !ok {
		h.fail(w, r, badRequest("unknown indicator %q", req.IndicatorID))
		return
	}
	country, err := h.findCountry(r.Context(), req.CountryID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.dashboard.AddChart(r.Context(), currentUser(r), country, indicator)
	if err != nil {
		h.saveFailed(w, r, err, dashboard.MsgChartSaveFailed)
		return
	}
	writeJSON(w, http.StatusCreated, saveResponse{ID: id, Message: dashboard.ChartSavedMessage(indicator.Name)})
}

func (h *Handler) saveFailed(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, errNotAuthenticated) {
		h.fail(w, r, err)
		return
	}
	h.logger.Error("dashboard save failed", zap.String("request_id", requestID(r)), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, apiError{Code: "save_failed", Message: message})
}

func (h *Handler) DeleteDashboardItem(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.DeleteItem(r.Context(), currentUser(r), chi.URLParam(r, "itemID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type toggleRequest struct {
	IndicatorID       string `json:"indicatorId"`
	ActiveIndicatorID string `json:"activeIndicatorId,omitempty"`
}

// ToggleItemChart handles a click on one of an item's indicators. The client
// says which indicator is showing, if any.
func (h *Handler) ToggleItemChart(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.dashboard.Item(r.Context(), currentUser(r), chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view := dashboard.DashboardItem{SavedItem: item, Indicators: dashboard.IndicatorsFor(item)}
	if req.ActiveIndicatorID != "" {
		view.ActiveIndicatorID = req.ActiveIndicatorID
		view.ActiveChart = &catalog.ChartSeries{}
	}
	writeJSON(w, http.StatusOK, h.dashboard.ToggleChart(r.Context(), view, req.IndicatorID))
}

// WatchDashboard pushes the shaped dashboard of whoever the session is
// signed in as, following sign-in and sign-out.
func (h *Handler) WatchDashboard(w http.ResponseWriter, r *http.Request) {
	watch := h.dashboard.WatchUserItems(context.Background(), h.presence.Stream(sessionID(r)))
	defer watch.Close()
	stream(context.Background(), w, r, h.logger, watch.C(), func(ctx context.Context, items []store.SavedItem) (any, bool) {
		shaped, err := h.dashboard.Shape(ctx, items)
		if err != nil {
			return nil, false
		}
		return shaped, true
	})
}

type chatRequest struct {
	Text string `json:"text"`
}

type transcriptResponse struct {
	Transcript []core.ChatMessage `json:"transcript"`
}

// DashboardTranscript returns the session's advisor conversation so far.
func (h *Handler) DashboardTranscript(w http.ResponseWriter, r *http.Request) {
	transcript := h.sessions.Advisor(sessionID(r)).Transcript()
	if transcript == nil {
		transcript = []core.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, transcriptResponse{Transcript: transcript})
}

func (h *Handler) DashboardChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.dashboard.Items(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transcript, err := h.sessions.Advisor(sessionID(r)).Ask(r.Context(), items, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if transcript == nil {
		transcript = []core.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, transcriptResponse{Transcript: transcript})
}
