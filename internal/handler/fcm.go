package handler

import (
	"net/http"
	"strings"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/repository"
	"shopmunim-backend/internal/server/authctx"

	"github.com/go-chi/chi/v5"
)

var devicePlatforms = map[string]struct{}{"android": {}, "ios": {}, "web": {}}

// FCMHandler manages the push tokens used for Push Notification reminders.
type FCMHandler struct {
	Repo repository.FCMRepository
}

func (h FCMHandler) RegisterRoutes(r chi.Router) {
	r.Post("/devices", h.register)
	r.Delete("/devices/{token}", h.unregister)
}

func (h FCMHandler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	token, platform, msg := normalizeDevice(req.Token, req.Platform)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	cu := authctx.FromContext(r.Context())
	if err := h.Repo.Register(r.Context(), domain.DeviceToken{
		UserID:   cu.ID,
		Token:    token,
		Platform: platform,
	}); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered", "platform": platform})
}

func (h FCMHandler) unregister(w http.ResponseWriter, r *http.Request) {
	cu := authctx.FromContext(r.Context())
	removed, err := h.Repo.Unregister(r.Context(), cu.ID, chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "device not registered")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// normalizeDevice trims the token and lowercases the platform. An empty
// platform defaults to android, the only store build today.
func normalizeDevice(token, platform string) (string, string, string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", "token is required"
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "android"
	}
	if _, ok := devicePlatforms[platform]; !ok {
		return "", "", "platform must be android, ios or web"
	}
	return token, platform, ""
}
