package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Handler returns the HTTP surface of the service:
//
//	POST /register          register with email and password
//	POST /login/email       sign in with email and password
//	POST /login/facebook    sign in with a Facebook access token
//	POST /login/google      sign in with a Google ID or access token
//	GET  /user/profile      current user
//	PUT  /user/profile      partial profile update
//	GET  /logout            clear the session
//
// Bodies may be form encoded or JSON. When the binder has a session manager
// the whole router is wrapped in its LoadAndSave middleware.
func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	s.Routes(r)

	mw := &Middleware{Resolver: s, Binder: s.binder, Logger: s.logger}
	var h http.Handler = mw.Authenticate(r)
	if s.binder != nil && s.binder.Sessions != nil {
		h = s.binder.Sessions.LoadAndSave(h)
	}
	return h
}

// Routes registers the handlers on r. Authentication middleware is the
// caller's responsibility.
func (s *Service) Routes(r *mux.Router) {
	mw := &Middleware{Resolver: s, Binder: s.binder, Logger: s.logger}

	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login/email", s.handleSignInEmail).Methods(http.MethodPost)
	r.HandleFunc("/login/facebook", s.handleSignInFacebook).Methods(http.MethodPost)
	r.HandleFunc("/login/google", s.handleSignInGoogle).Methods(http.MethodPost)
	r.Handle("/user/profile", mw.RequireUser(http.HandlerFunc(s.handleProfile))).Methods(http.MethodGet)
	r.Handle("/user/profile", mw.RequireUser(http.HandlerFunc(s.handleUpdateProfile))).Methods(http.MethodPut)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet)
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if form["email"] == "" || form["password"] == "" {
		writeError(w, NewAuthError(ErrCodeMissingField, "email and password required", http.StatusBadRequest))
		return
	}
	view, err := s.Register(r.Context(), RegisterParams{
		Email:     form["email"],
		Password:  form["password"],
		Name:      form["name"],
		Gender:    form["gender"],
		Birthyear: form["birthyear"],
		ImageURL:  form["image_url"],
	})
	s.respond(w, r, view, http.StatusCreated, err)
}

func (s *Service) handleSignInEmail(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.SignInEmail(r.Context(), form["email"], form["password"])
	s.respond(w, r, view, http.StatusOK, err)
}

func (s *Service) handleSignInFacebook(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.SignInFacebook(r.Context(), form["access_token"])
	s.respond(w, r, view, http.StatusOK, err)
}

func (s *Service) handleSignInGoogle(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.SignInGoogle(r.Context(), form["access_token"])
	s.respond(w, r, view, http.StatusOK, err)
}

func (s *Service) handleProfile(w http.ResponseWriter, r *http.Request) {
	view, err := s.Profile(r.Context())
	s.respond(w, r, view, http.StatusOK, err)
}

func (s *Service) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	field := func(name string) *string {
		if v, ok := form[name]; ok {
			return &v
		}
		return nil
	}
	view, err := s.UpdateProfile(r.Context(), UserFrom(r.Context()), ProfileUpdate{
		Email:     field("email"),
		Password:  field("password"),
		Name:      field("name"),
		Gender:    field("gender"),
		Birthyear: field("birthyear"),
		ImageURL:  field("image_url"),
	})
	s.respond(w, r, view, http.StatusOK, err)
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Logout(r.Context()); err != nil {
		s.respond(w, r, nil, http.StatusOK, err)
		return
	}
	writeJSON(w, http.StatusOK, "Logged out")
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, view *UserView, status int, err error) {
	if err != nil {
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, status, view)
}

// parseForm reads a flat set of string fields from a form or JSON body.
// Only fields present in the request appear in the result.
func parseForm(r *http.Request) (map[string]string, error) {
	out := make(map[string]string)
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			return nil, NewAuthError("parse_error", "Invalid post body", http.StatusBadRequest)
		}
		for k, v := range data {
			switch val := v.(type) {
			case string:
				out[k] = val
			case nil:
			default:
				// birthyear is often sent as a number
				out[k] = fmt.Sprint(val)
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, NewAuthError("parse_error", "Error parsing form", http.StatusBadRequest)
	}
	for k, v := range r.Form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out, nil
}

// writeError writes the error as a JSON string message. Provider errors
// forward the upstream body as is.
func writeError(w http.ResponseWriter, err error) {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Code == ErrCodeProviderError && len(authErr.Body) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(authErr.Status)
		w.Write(authErr.Body)
		return
	}
	writeJSON(w, StatusOf(err), MessageOf(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("error encoding response", "error", err)
	}
}
