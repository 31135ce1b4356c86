package api

import (
	"context"
	"net/http"

	"econglobe.io/explorer/internal/state"
)

type selectRequest struct {
	CountryID string `json:"countryId"`
}

func (h *Handler) selection(r *http.Request) *state.SelectionState {
	return h.selections.Get(sessionID(r))
}

func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.selection(r).Current())
}

// SelectCountry is the globe click: it opens the panel on the country.
func (h *Handler) SelectCountry(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	country, err := h.findCountry(r.Context(), req.CountryID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.selection(r).SelectCountry(country))
}

func (h *Handler) OpenPanel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.selection(r).OpenPanel())
}

func (h *Handler) ClosePanel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.selection(r).ClosePanel())
}

func (h *Handler) GoBack(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.selection(r).GoBack())
}

// WatchSelection pushes the current selection and every later change.
func (h *Handler) WatchSelection(w http.ResponseWriter, r *http.Request) {
	sub := h.selection(r).Subscribe()
	defer sub.Close()
	stream(context.Background(), w, r, h.logger, sub.C(), func(_ context.Context, s state.Selection) (any, bool) {
		return s, true
	})
}
