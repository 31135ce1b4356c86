package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"econglobe.io/explorer/internal/auth"
	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/core"
	"econglobe.io/explorer/internal/dashboard"
)

var (
	errBadRequest  = errors.New("bad request")
	errNotFound    = errors.New("not found")
	errRateLimited = errors.New("too many requests, slow down")

	errNotAuthenticated = dashboard.ErrNotAuthenticated
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type apiError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toAPIError(err error) apiError {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		return apiError{Status: http.StatusUnprocessableEntity, Code: "validation_failed", Message: verr.Error(), Fields: verr.Fields}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apiError{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: auth.MsgInvalidLogin}
	case errors.Is(err, dashboard.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidToken):
		return apiError{Status: http.StatusUnauthorized, Code: "not_authenticated", Message: "Please log in."}
	case errors.Is(err, auth.ErrEmailInUse):
		return apiError{Status: http.StatusConflict, Code: "email_in_use", Message: auth.MsgEmailInUse}
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		return apiError{Status: http.StatusBadGateway, Code: "catalog_unavailable", Message: "World Bank data is unavailable right now."}
	case errors.Is(err, core.ErrChatService):
		return apiError{Status: http.StatusBadGateway, Code: "chat_unavailable", Message: "An error occurred while contacting the AI analysis service."}
	case errors.Is(err, core.ErrTurnInFlight):
		return apiError{Status: http.StatusConflict, Code: "turn_in_flight", Message: err.Error()}
	case errors.Is(err, core.ErrSessionReset):
		return apiError{Status: http.StatusConflict, Code: "session_reset", Message: err.Error()}
	case errors.Is(err, core.ErrSelectionIncomplete), errors.Is(err, core.ErrSameCountry), errors.Is(err, core.ErrNoAnalysis):
		return apiError{Status: http.StatusBadRequest, Code: "invalid_comparison", Message: err.Error()}
	case errors.Is(err, errRateLimited):
		return apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: err.Error()}
	case errors.Is(err, errNotFound), errors.Is(err, dashboard.ErrItemNotFound):
		return apiError{Status: http.StatusNotFound, Code: "not_found", Message: err.Error()}
	case errors.Is(err, errBadRequest):
		return apiError{Status: http.StatusBadRequest, Code: "bad_request", Message: err.Error()}
	default:
		return apiError{Status: http.StatusInternalServerError, Code: "internal", Message: "Something went wrong."}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are sent; a failed body write only means the client left.
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err))
	}
	writeJSON(w, apiErr.Status, apiErr)
}

func decodeJSON(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}
