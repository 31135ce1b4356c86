package auth

import (
	"net/mail"
	"sort"
	"strings"
)

const (
	minPasswordLength = 6
	// bcrypt refuses longer input.
	maxPasswordBytes  = 72

	MsgPasswordsMismatch = "Passwords do not match."
	MsgEmailInUse        = "This email address is already in use."
	MsgInvalidLogin      = "Invalid email or password."
)

// ValidationError is a form-level rejection. Fields maps form field names to
// their inline messages; Message is the form-wide message, if any.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) empty() bool {
	return e.Message == "" && len(e.Fields) == 0
}

type RegisterForm struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate returns nil or a *ValidationError.
func (f RegisterForm) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(f.FirstName) == "" {
		v.add("firstName", "First name is required.")
	}
	if strings.TrimSpace(f.LastName) == "" {
		v.add("lastName", "Last name is required.")
	}
	checkEmail(v, f.Email)
	if f.Password == "" {
		v.add("password", "Password is required.")
	} else if len(f.Password) < minPasswordLength {
		v.add("password", "Password must be at least 6 characters.")
	} else if len(f.Password) > maxPasswordBytes {
		v.add("password", "Password must be at most 72 bytes.")
	}
	if f.ConfirmPassword == "" {
		v.add("confirmPassword", "Please confirm your password.")
	}
	if f.Password != f.ConfirmPassword {
		v.Message = MsgPasswordsMismatch
	}
	if v.empty() {
		return nil
	}
	return v
}

type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (f LoginForm) Validate() error {
	v := &ValidationError{}
	checkEmail(v, f.Email)
	if f.Password == "" {
		v.add("password", "Password is required.")
	}
	if v.empty() {
		return nil
	}
	return v
}

func checkEmail(v *ValidationError, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		v.add("email", "Email is required.")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		v.add("email", "Please enter a valid email address.")
	}
}
