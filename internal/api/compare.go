package api

import (
	"net/http"

	"econglobe.io/explorer/internal/core"
)

type compareSelectRequest struct {
	Side      string `json:"side"`
	CountryID string `json:"countryId"`
}

func (h *Handler) comparison(r *http.Request) *core.ComparisonSession {
	return h.sessions.Comparison(sessionID(r))
}

func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.comparison(r).Snapshot())
}

func (h *Handler) SelectComparisonCountry(w http.ResponseWriter, r *http.Request) {
	var req compareSelectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	side, err := core.ParseSide(req.Side)
	if err != nil {
		h.fail(w, r, badRequest("%v", err))
		return
	}
	country, err := h.findCountry(r.Context(), req.CountryID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.comparison(r).SelectCountry(side, country)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Analyze reports a failed model call as a "failed" snapshot, not an error.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	snap, err := h.comparison(r).Analyze(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) ComparisonChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.comparison(r).SendChatTurn(r.Context(), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) ResetComparison(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.comparison(r).Reset())
}
