package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"econglobe.io/explorer/internal/auth"
	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/core"
	"econglobe.io/explorer/internal/dashboard"
	"econglobe.io/explorer/internal/state"
	"econglobe.io/explorer/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

type pageSet struct {
	pages map[string]*template.Template
}

func mustLoadPages() *pageSet {
	set := &pageSet{pages: make(map[string]*template.Template)}
	for _, name := range []string{"globe", "compare", "login", "register", "dashboard"} {
		set.pages[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return set
}

type pageData struct {
	Title      string
	User       *store.User
	Message    string
	Fields     map[string]string
	Form       any
	Selection  state.Selection
	Indicators []catalog.Indicator
	Comparison core.ComparisonSnapshot
	Items      []dashboard.DashboardItem
	Transcript []core.ChatMessage
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.User = currentUser(r)
	var buf bytes.Buffer
	if err := h.pages.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug("write page", zap.String("page", name), zap.Error(err))
	}
}

// guardPage sends signed-out visitors to the login page.
func (h *Handler) guardPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) GlobePage(w http.ResponseWriter, r *http.Request) {
	sel := h.selection(r).Current()
	data := pageData{Title: "Explore", Selection: sel}
	if sel.SelectedCountry != nil {
		data.Indicators = h.catalog.ListIndicators(sel.SelectedCountry.ID)
	}
	h.render(w, r, http.StatusOK, "globe", data)
}

// ComparePage starts a fresh comparison on every visit.
func (h *Handler) ComparePage(w http.ResponseWriter, r *http.Request) {
	h.sessions.DropComparison(sessionID(r))
	h.render(w, r, http.StatusOK, "compare", pageData{
		Title:      "Compare",
		Comparison: h.comparison(r).Snapshot(),
	})
}

// DashboardPage starts a fresh advisor conversation on every visit.
func (h *Handler) DashboardPage(w http.ResponseWriter, r *http.Request) {
	h.sessions.DropAdvisor(sessionID(r))
	data := pageData{Title: "Dashboard"}

	items, err := h.dashboard.Items(r.Context(), currentUser(r))
	if err == nil {
		data.Items, err = h.dashboard.Shape(r.Context(), items)
	}
	if err != nil {
		h.logger.Warn("dashboard page without items", zap.String("request_id", requestID(r)), zap.Error(err))
		data.Message = "Could not load your dashboard."
	}
	h.render(w, r, http.StatusOK, "dashboard", data)
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", pageData{Title: "Log in", Form: auth.LoginForm{}})
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login", pageData{Title: "Log in", Form: auth.LoginForm{}, Message: "Invalid form submission."})
		return
	}
	form := auth.LoginForm{Email: r.PostForm.Get("email"), Password: r.PostForm.Get("password")}

	sess, err := h.auth.SignIn(r.Context(), form.Email, form.Password)
	if err != nil {
		form.Password = ""
		data := pageData{Title: "Log in", Form: form}
		status := h.formError(r, err, &data)
		h.render(w, r, status, "login", data)
		return
	}
	h.signedIn(w, r, sess)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", pageData{Title: "Register", Form: auth.RegisterForm{}})
}

func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "register", pageData{Title: "Register", Form: auth.RegisterForm{}, Message: "Invalid form submission."})
		return
	}
	form := auth.RegisterForm{
		FirstName:       r.PostForm.Get("firstName"),
		LastName:        r.PostForm.Get("lastName"),
		Email:           r.PostForm.Get("email"),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirmPassword"),
	}

	sess, err := h.auth.SignUp(r.Context(), form)
	if err != nil {
		form.Password, form.ConfirmPassword = "", ""
		data := pageData{Title: "Register", Form: form}
		status := h.formError(r, err, &data)
		h.render(w, r, status, "register", data)
		return
	}
	h.signedIn(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) LogoutForm(w http.ResponseWriter, r *http.Request) {
	h.signOut(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// formError fills the page's inline messages from err and returns the
// status to render with.
func (h *Handler) formError(r *http.Request, err error, data *pageData) int {
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		data.Message = verr.Message
		data.Fields = verr.Fields
		return http.StatusUnprocessableEntity
	}
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.Error("form submission failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	data.Message = apiErr.Message
	return apiErr.Status
}
