package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wolfchat/wolfchat/internal/middleware"
)

type contentRequest struct {
	Content string `json:"content"`
}

func (h *handler) listHowls(w http.ResponseWriter, r *http.Request) {
	feed, err := h.app.Feed.All(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *handler) followingFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.app.Feed.Following(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *handler) createHowl(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.app.Howls.Post(r.Context(), middleware.GetUserID(r.Context()), req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) deleteHowl(w http.ResponseWriter, r *http.Request) {
	howlID := mux.Vars(r)["howlID"]
	if err := h.app.Howls.Delete(r.Context(), middleware.GetUserID(r.Context()), howlID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Howl deleted"})
}

func (h *handler) createReply(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	howlID := mux.Vars(r)["howlID"]
	updated, err := h.app.Howls.Reply(r.Context(), middleware.GetUserID(r.Context()), howlID, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

func (h *handler) deleteReply(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.app.Howls.DeleteReply(r.Context(), middleware.GetUserID(r.Context()), vars["howlID"], vars["replyID"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reply deleted"})
}

func (h *handler) pinHowl(w http.ResponseWriter, r *http.Request) {
	howlID := mux.Vars(r)["howlID"]
	featured, err := h.app.Users.Pin(r.Context(), middleware.GetUserID(r.Context()), howlID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "featuredHowlId": featured})
}
