// Package app ties the domain services together.
package app

import (
	"time"

	"github.com/wolfchat/wolfchat/internal/app/services/feed"
	"github.com/wolfchat/wolfchat/internal/app/services/howls"
	"github.com/wolfchat/wolfchat/internal/app/services/notifications"
	"github.com/wolfchat/wolfchat/internal/app/services/profiles"
	"github.com/wolfchat/wolfchat/internal/app/services/sessions"
	"github.com/wolfchat/wolfchat/internal/app/services/users"
	"github.com/wolfchat/wolfchat/internal/app/storage"
	"github.com/wolfchat/wolfchat/internal/app/storage/memory"
	"github.com/wolfchat/wolfchat/internal/logging"
	"github.com/wolfchat/wolfchat/internal/session"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Howls         storage.HowlStore
	Notifications storage.NotificationStore
	Sessions      storage.SessionStore
}

// Options carries construction settings beyond the stores.
type Options struct {
	JWTSecret  string
	SessionTTL time.Duration
}

// Application bundles the domain services.
type Application struct {
	log *logging.Logger

	Sessions      *sessions.Service
	Users         *users.Service
	Howls         *howls.Service
	Feed          *feed.Service
	Profiles      *profiles.Service
	Notifications *notifications.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logging.Logger) *Application {
	if log == nil {
		log = logging.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Howls == nil {
		stores.Howls = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}

	if opts.JWTSecret == "" {
		opts.JWTSecret = "wolfchat-dev-secret"
		log.Warn("AUTH_JWT_SECRET not set; using development secret")
	}
	tokens := session.NewTokenManager(opts.JWTSecret, opts.SessionTTL)

	feedSvc := feed.New(stores.Users, stores.Howls, log)

	return &Application{
		log:           log,
		Sessions:      sessions.New(stores.Users, stores.Sessions, tokens, log),
		Users:         users.New(stores.Users, stores.Howls, log),
		Howls:         howls.New(stores.Users, stores.Howls, feedSvc, log),
		Feed:          feedSvc,
		Profiles:      profiles.New(stores.Users, stores.Howls, feedSvc, log),
		Notifications: notifications.New(stores.Notifications, log),
	}
}
