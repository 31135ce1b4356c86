package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"econglobe.io/explorer/internal/auth"
	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/store"
)

// ListCountries returns the catalog filtered by ?q= and without ?exclude=.
// The catalog is fetched on every call.
func (h *Handler) ListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.catalog.ListCountries(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var exclude *catalog.Country
	if id := r.URL.Query().Get("exclude"); id != "" {
		if c, ok := catalog.FindCountry(countries, id); ok {
			exclude = &c
		}
	}
	writeJSON(w, http.StatusOK, catalog.FilterCountries(countries, r.URL.Query().Get("q"), exclude))
}

func (h *Handler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.ListIndicators(chi.URLParam(r, "countryID")))
}

func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	indicator, ok := catalog.LookupIndicator(chi.URLParam(r, "indicatorID"))
	if !ok {
		h.fail(w, r, badRequest("unknown indicator %q", chi.URLParam(r, "indicatorID")))
		return
	}
	series, err := h.catalog.Chart(r.Context(), chi.URLParam(r, "countryID"), indicator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (h *Handler) signedIn(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	h.setTokenCookie(w, sess.Token, sess.ExpiresAt)
	h.presence.Observe(sessionID(r), sess.User)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var form auth.RegisterForm
	if err := decodeJSON(r, &form); err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.auth.SignUp(r.Context(), form)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.signedIn(w, r, sess)
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var form auth.LoginForm
	if err := decodeJSON(r, &form); err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.auth.SignIn(r.Context(), form.Email, form.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.signedIn(w, r, sess)
	writeJSON(w, http.StatusOK, sess)
}

// Logout always succeeds; a missing or unknown token is already signed out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.signOut(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	token := currentToken(r)
	if token == "" {
		token, _ = bearerToken(r)
	}
	if err := h.auth.SignOut(r.Context(), token); err != nil {
		h.logger.Warn("sign out could not revoke token", zap.String("request_id", requestID(r)), zap.Error(err))
	}
	h.clearTokenCookie(w)
	h.presence.Observe(sessionID(r), nil)
	h.presence.Forget(sessionID(r))
	h.sessions.DropAdvisor(sessionID(r))
	if sel, ok := h.selections.Lookup(sessionID(r)); ok && sel.Subscribers() == 0 {
		h.selections.Drop(sessionID(r))
	}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]*store.User{"user": currentUser(r)})
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.auth.UpdateDisplayName(r.Context(), currentUser(r).ID, req.DisplayName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.presence.Observe(sessionID(r), user)
	writeJSON(w, http.StatusOK, map[string]*store.User{"user": user})
}
