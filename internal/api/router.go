package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(h.browserSession)
	r.Use(h.identify)

	// Pages
	r.Get("/", h.GlobePage)
	r.Get("/compare", h.ComparePage)
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.LoginForm)
	r.Get("/register", h.RegisterPage)
	r.Post("/register", h.RegisterForm)
	r.Post("/logout", h.LogoutForm)
	r.Group(func(r chi.Router) {
		r.Use(h.guardPage)
		r.Get("/dashboard", h.DashboardPage)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			h.fail(w, r, errNotFound)
		})
		r.Get("/health", h.Health)

		r.Get("/countries", h.ListCountries)
		r.Get("/countries/{countryID}/indicators", h.ListIndicators)
		r.Get("/countries/{countryID}/indicators/{indicatorID}", h.GetSeries)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
			r.With(h.requireUser).Put("/profile", h.UpdateProfile)
		})

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", h.GetSelection)
			r.Post("/select", h.SelectCountry)
			r.Post("/open", h.OpenPanel)
			r.Post("/close", h.ClosePanel)
			r.Post("/back", h.GoBack)
			r.Get("/watch", h.WatchSelection)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/watch", h.WatchDashboard)
			r.Group(func(r chi.Router) {
				r.Use(h.requireUser)
				r.Get("/items", h.ListDashboardItems)
				r.Post("/countries", h.SaveCountry)
				r.Post("/charts", h.SaveChart)
				r.Delete("/items/{itemID}", h.DeleteDashboardItem)
				r.Post("/items/{itemID}/chart", h.ToggleItemChart)
				r.Get("/chat", h.DashboardTranscript)
				r.With(h.limitAI).Post("/chat", h.DashboardChat)
			})
		})

		r.Route("/compare", func(r chi.Router) {
			r.Get("/", h.GetComparison)
			r.Post("/select", h.SelectComparisonCountry)
			r.With(h.limitAI).Post("/analyze", h.Analyze)
			r.With(h.limitAI).Post("/chat", h.ComparisonChat)
			r.Post("/reset", h.ResetComparison)
		})
	})

	return r
}
