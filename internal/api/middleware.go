package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"econglobe.io/explorer/internal/store"
)

const (
	sessionCookie = "econglobe_sid"
	tokenCookie   = "econglobe_token"
)

type ctxKey int

const (
	sidKey ctxKey = iota
	userKey
	tokenKey
)

func sessionID(r *http.Request) string {
	sid, _ := r.Context().Value(sidKey).(string)
	return sid
}

func currentUser(r *http.Request) *store.User {
	u, _ := r.Context().Value(userKey).(*store.User)
	return u
}

func currentToken(r *http.Request) string {
	t, _ := r.Context().Value(tokenKey).(string)
	return t
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// requestLogger logs one line per request once it completes.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", requestID(r)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// browserSession pins every request to a browser session id kept in a
// cookie. Selection, presence, and comparison state hang off this id.
func (h *Handler) browserSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sid string
		if c, err := r.Cookie(sessionCookie); err == nil {
			if _, perr := uuid.Parse(c.Value); perr == nil {
				sid = c.Value
			}
		}
		if sid == "" {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				Secure:   h.cookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sidKey, sid)))
	})
}

// identify resolves the bearer token or token cookie to a user and records
// the result as the session's current user. Bad tokens count as signed out.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sid := sessionID(r)

		token, fromCookie := bearerToken(r)
		if token == "" {
			h.presence.Observe(sid, nil)
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.auth.Authenticate(ctx, token)
		if err != nil {
			h.logger.Debug("rejected token", zap.String("request_id", requestID(r)), zap.Error(err))
			if fromCookie {
				h.clearTokenCookie(w)
			}
			h.presence.Observe(sid, nil)
			next.ServeHTTP(w, r)
			return
		}

		h.presence.Observe(sid, user)
		ctx = context.WithValue(ctx, userKey, user)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), false
	}
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

func (h *Handler) setTokenCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireUser rejects API calls from signed-out sessions.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			h.fail(w, r, errNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitAI applies the per-session budget for model calls.
func (h *Handler) limitAI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.allow(sessionID(r)) {
			h.fail(w, r, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// sessionLimiter hands out one token bucket per browser session.
type sessionLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

const limiterIdle = 10 * time.Minute

func newSessionLimiter(perMinute float64) *sessionLimiter {
	burst := int(perMinute / 4)
	if burst < 1 {
		burst = 1
	}
	return &sessionLimiter{
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

func (l *sessionLimiter) allow(sid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdle {
		for key, e := range l.entries {
			if now.Sub(e.lastSeen) > limiterIdle {
				delete(l.entries, key)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[sid]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[sid] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
