// Package httpapi exposes the REST API.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	app "github.com/wolfchat/wolfchat/internal/app"
	"github.com/wolfchat/wolfchat/internal/app/metrics"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/httputil"
	"github.com/wolfchat/wolfchat/internal/logging"
	"github.com/wolfchat/wolfchat/internal/middleware"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Config carries handler settings.
type Config struct {
	// UploadDir is where avatar uploads are stored.
	UploadDir string
	// MaxUploadBytes bounds a single avatar upload.
	MaxUploadBytes int64
	// SecureCookies marks session cookies Secure.
	SecureCookies bool
	// SessionTTLSeconds is the cookie max age.
	SessionTTLSeconds int
	// Limiter, when set, rate-limits requests. It runs after session auth
	// so logged-in users are keyed by user id rather than remote address.
	Limiter *middleware.RateLimiter
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	cfg Config
	log *logging.Logger
}

// NewRouter returns the API router with the middleware stack applied.
func NewRouter(application *app.Application, cfg Config, log *logging.Logger) http.Handler {
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	h := &handler{app: application, cfg: cfg, log: log}

	r := mux.NewRouter()
	r.Use(middleware.NewSessionAuth(application.Sessions, log).Handler)
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Handler)
	}
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/signup", h.signup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	api.HandleFunc("/user", h.currentUser).Methods(http.MethodGet)

	api.HandleFunc("/howls", h.listHowls).Methods(http.MethodGet)
	api.HandleFunc("/howls", h.requireUser(h.createHowl)).Methods(http.MethodPost)
	api.HandleFunc("/howls/following", h.requireUser(h.followingFeed)).Methods(http.MethodGet)
	api.HandleFunc("/howls/{howlID}", h.requireUser(h.deleteHowl)).Methods(http.MethodDelete)
	api.HandleFunc("/howls/{howlID}/replies", h.requireUser(h.createReply)).Methods(http.MethodPost)
	api.HandleFunc("/howls/{howlID}/replies/{replyID}", h.requireUser(h.deleteReply)).Methods(http.MethodDelete)
	api.HandleFunc("/howls/{howlID}/pin", h.requireUser(h.pinHowl)).Methods(http.MethodPost)

	api.HandleFunc("/profile", h.requireUser(h.ownProfile)).Methods(http.MethodGet)
	api.HandleFunc("/profile/blurb", h.requireUser(h.updateBlurb)).Methods(http.MethodPost)
	api.HandleFunc("/profile/{username}", h.profile).Methods(http.MethodGet)

	api.HandleFunc("/users/{userID}/follow", h.requireUser(h.follow)).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/unfollow", h.requireUser(h.unfollow)).Methods(http.MethodPost)

	api.HandleFunc("/settings/avatar-color", h.requireUser(h.setAvatarColor)).Methods(http.MethodPost)
	api.HandleFunc("/settings/reset-avatar", h.requireUser(h.resetAvatar)).Methods(http.MethodPost)
	api.HandleFunc("/settings/theme", h.requireUser(h.setTheme)).Methods(http.MethodPost)
	api.HandleFunc("/settings/change-password", h.requireUser(h.changePassword)).Methods(http.MethodPost)
	api.HandleFunc("/settings/avatar", h.requireUser(h.uploadAvatar)).Methods(http.MethodPost)

	api.HandleFunc("/notifications", h.requireUser(h.listNotifications)).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read", h.requireUser(h.markNotificationsRead)).Methods(http.MethodPost)

	if cfg.UploadDir != "" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return middleware.RequireUser(next).ServeHTTP
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	httputil.WriteJSONResponse(w, status, v)
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		svcErr = errors.Internal("", err)
	}
	if svcErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).WithField("method", r.Method).
			Error("request failed")
	}
	httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
}

func decodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Validation(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
