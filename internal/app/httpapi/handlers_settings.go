package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/middleware"
)

var allowedAvatarExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

func (h *handler) setAvatarColor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Color string `json:"color"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.app.Users.SetAvatarColor(r.Context(), middleware.GetUserID(r.Context()), req.Color); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Color updated successfully"})
}

func (h *handler) resetAvatar(w http.ResponseWriter, r *http.Request) {
	if _, err := h.app.Users.ResetAvatar(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Avatar reset successfully"})
}

func (h *handler) setTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.app.Users.SetTheme(r.Context(), middleware.GetUserID(r.Context()), user.Theme(req.Theme))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": string(u.Theme)})
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.app.Users.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (h *handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	if h.cfg.UploadDir == "" {
		h.writeError(w, r, errors.Validation("avatar uploads are not enabled"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		h.writeError(w, r, errors.Validation("upload too large or malformed"))
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		h.writeError(w, r, errors.Validation("missing avatar file"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAvatarExts[ext] {
		h.writeError(w, r, errors.Validation("unsupported image type"))
		return
	}

	name := fmt.Sprintf("%s%s", uuid.NewString(), ext)
	dst, err := os.Create(filepath.Join(h.cfg.UploadDir, name))
	if err != nil {
		h.writeError(w, r, errors.Internal("could not store avatar", err))
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		h.writeError(w, r, errors.Internal("could not store avatar", err))
		return
	}

	u, err := h.app.Users.SetAvatar(r.Context(), middleware.GetUserID(r.Context()), "/uploads/"+name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Avatar updated successfully",
		"avatar":  u.Avatar,
	})
}
