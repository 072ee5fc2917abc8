package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wolfchat/wolfchat/internal/middleware"
)

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	h.serveProfile(w, r, mux.Vars(r)["username"])
}

func (h *handler) ownProfile(w http.ResponseWriter, r *http.Request) {
	h.serveProfile(w, r, middleware.GetUsername(r.Context()))
}

func (h *handler) serveProfile(w http.ResponseWriter, r *http.Request, username string) {
	profile, err := h.app.Profiles.Get(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handler) updateBlurb(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blurb string `json:"blurb"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.app.Users.SetBlurb(r.Context(), middleware.GetUserID(r.Context()), req.Blurb); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Blurb updated successfully"})
}

func (h *handler) follow(w http.ResponseWriter, r *http.Request) {
	targetID := mux.Vars(r)["userID"]
	if err := h.app.Users.Follow(r.Context(), middleware.GetUserID(r.Context()), targetID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Now following"})
}

func (h *handler) unfollow(w http.ResponseWriter, r *http.Request) {
	targetID := mux.Vars(r)["userID"]
	if err := h.app.Users.Unfollow(r.Context(), middleware.GetUserID(r.Context()), targetID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Unfollowed"})
}
