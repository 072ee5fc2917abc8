// Package user defines the user entity and its profile preferences.
package user

import (
	"strings"
	"time"
)

// DefaultAvatarColor is applied on signup and on avatar reset.
const DefaultAvatarColor = "#4a4a4a"

// MaxBlurbLength bounds the free-text profile blurb.
const MaxBlurbLength = 500

// Theme is a named UI theme preference.
type Theme string

const (
	ThemeLight        Theme = "light"
	ThemeDark         Theme = "dark"
	ThemeBlue         Theme = "blue"
	ThemeHighContrast Theme = "highContrast"
	ThemeBee          Theme = "bee"
	ThemePink         Theme = "pink"
)

// Themes lists every selectable theme.
var Themes = []Theme{ThemeLight, ThemeDark, ThemeBlue, ThemeHighContrast, ThemeBee, ThemePink}

// ValidTheme reports whether t names a known theme.
func ValidTheme(t Theme) bool {
	for _, known := range Themes {
		if known == t {
			return true
		}
	}
	return false
}

// User is a registered account. PasswordHash never leaves the storage and
// service layers.
type User struct {
	ID             string    `json:"_id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	Avatar         string    `json:"avatar,omitempty"`
	AvatarColor    string    `json:"avatarColor"`
	Blurb          string    `json:"blurb"`
	Theme          Theme     `json:"theme"`
	FeaturedHowlID string    `json:"featuredHowl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Author is the subset of user fields embedded in feed and profile output.
type Author struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar,omitempty"`
	AvatarColor string `json:"avatarColor"`
}

// AuthorView projects a user onto its public author fields.
func (u User) AuthorView() Author {
	return Author{ID: u.ID, Username: u.Username, Avatar: u.Avatar, AvatarColor: u.AvatarColor}
}

// NormalizeUsername trims surrounding whitespace.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}
