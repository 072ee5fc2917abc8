package httpapi

import (
	"net/http"
	"time"

	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/app/metrics"
	"github.com/wolfchat/wolfchat/internal/app/services/sessions"
	"github.com/wolfchat/wolfchat/internal/middleware"
	"github.com/wolfchat/wolfchat/internal/session"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// currentUserResponse is the login-state envelope polled by the client.
type currentUserResponse struct {
	IsLoggedIn bool       `json:"isLoggedIn"`
	User       *user.User `json:"user"`
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	login, err := h.app.Sessions.SignUp(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.openSession(w, login)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Signup successful"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	login, err := h.app.Sessions.LogIn(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.openSession(w, login)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.Token(r); token != "" {
		if err := h.app.Sessions.LogOut(r.Context(), token); err != nil {
			h.log.WithContext(r.Context()).WithError(err).Warn("logout failed")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// currentUser reports the login state. Anonymous callers get a 200 with
// isLoggedIn false, never a 401, so the client can poll it unconditionally.
func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusOK, currentUserResponse{})
		return
	}

	u, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		// Session outlived the account; treat as logged out.
		writeJSON(w, http.StatusOK, currentUserResponse{})
		return
	}
	writeJSON(w, http.StatusOK, currentUserResponse{IsLoggedIn: true, User: &u})
}

func (h *handler) openSession(w http.ResponseWriter, login sessions.Login) {
	maxAge := h.cfg.SessionTTLSeconds
	if maxAge <= 0 {
		maxAge = int(time.Until(login.ExpiresAt) / time.Second)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    login.Token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	metrics.RecordSessionOpened()
}
