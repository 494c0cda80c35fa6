package handler

import (
	"net/http"
	"strings"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/server/authctx"
	"shopmunim-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Service *service.AuthService
	// EchoOTP returns the code in the send-otp response (development only).
	EchoOTP bool
}

func (h AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/send-otp", h.sendOTP)
	r.Post("/auth/verify-otp", h.verifyOTP)
	r.Post("/auth/firebase", h.loginFirebase)
}

func (h AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.me)
	r.Post("/auth/switch-role", h.switchRole)
	r.Put("/auth/profile", h.updateProfile)
	r.Post("/auth/profile-photo", h.uploadPhoto)
	r.Delete("/auth/profile-photo", h.removePhoto)
	r.Post("/auth/pin", h.setPIN)
	r.Post("/auth/pin/verify", h.verifyPIN)
	r.Post("/auth/reset-pin", h.resetPIN)
	r.Get("/auth/sessions", h.sessions)
	r.Post("/auth/data-export", h.dataExport)
	r.Delete("/auth/account", h.deleteAccount)
}

func (h AuthHandler) sendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone         string `json:"phone"`
		Name          string `json:"name"`
		IsLogin       bool   `json:"is_login"`
		TermsAccepted bool   `json:"terms_accepted"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	code, err := h.Service.SendOTP(r.Context(), service.SendOTPInput{
		Phone:         req.Phone,
		Name:          req.Name,
		IsLogin:       req.IsLogin,
		TermsAccepted: req.TermsAccepted,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := map[string]any{"message": "OTP sent successfully"}
	if h.EchoOTP {
		resp["otp"] = code
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h AuthHandler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone         string `json:"phone"`
		OTP           string `json:"otp"`
		Name          string `json:"name"`
		TermsAccepted bool   `json:"terms_accepted"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	device, os := deviceInfo(r)
	res, err := h.Service.VerifyOTP(r.Context(), service.VerifyOTPInput{
		Phone:         req.Phone,
		OTP:           strings.TrimSpace(req.OTP),
		Name:          req.Name,
		TermsAccepted: req.TermsAccepted,
		Device:        device,
		OS:            os,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAuthResponse(w, res)
}

func (h AuthHandler) loginFirebase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := decodeJSON(r, &req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "id_token is required")
		return
	}
	device, os := deviceInfo(r)
	res, err := h.Service.LoginWithFirebase(r.Context(), req.IDToken, device, os)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAuthResponse(w, res)
}

func (h AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	cu := authctx.FromContext(r.Context())
	u, err := h.Service.Me(r.Context(), cu.ID)
	writeUserResult(w, u, err)
}

func (h AuthHandler) switchRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	cu := authctx.FromContext(r.Context())
	u, err := h.Service.SwitchRole(r.Context(), cu.ID, domain.UserRole(req.Role))
	writeUserResult(w, u, err)
}

func (h AuthHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	cu := authctx.FromContext(r.Context())
	u, err := h.Service.UpdateProfile(r.Context(), cu.ID, req.Name, req.Phone)
	writeUserResult(w, u, err)
}

func (h AuthHandler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Photo string `json:"photo"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Photo) == "" {
		writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	cu := authctx.FromContext(r.Context())
	u, err := h.Service.SetPhoto(r.Context(), cu.ID, req.Photo)
	writeUserResult(w, u, err)
}

func (h AuthHandler) removePhoto(w http.ResponseWriter, r *http.Request) {
	cu := authctx.FromContext(r.Context())
	u, err := h.Service.SetPhoto(r.Context(), cu.ID, "")
	writeUserResult(w, u, err)
}

func (h AuthHandler) setPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	cu := authctx.FromContext(r.Context())
	if err := h.Service.SetPIN(r.Context(), cu.ID, req.PIN); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "PIN set successfully"})
}

func (h AuthHandler) verifyPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	cu := authctx.FromContext(r.Context())
	if err := h.Service.VerifyPIN(r.Context(), cu.ID, req.PIN); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": true})
}

func (h AuthHandler) resetPIN(w http.ResponseWriter, r *http.Request) {
	cu := authctx.FromContext(r.Context())
	if err := h.Service.ResetPIN(r.Context(), cu.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "PIN reset successfully"})
}

func (h AuthHandler) sessions(w http.ResponseWriter, r *http.Request) {
	cu := authctx.FromContext(r.Context())
	items, err := h.Service.ListSessions(r.Context(), cu.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, s := range items {
		out = append(out, map[string]any{
			"id":           s.ID,
			"device":       s.Device,
			"os":           s.OS,
			"current":      s.ID == cu.SessionID,
			"created_at":   s.CreatedAt,
			"last_seen_at": s.LastSeenAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h AuthHandler) dataExport(w http.ResponseWriter, r *http.Request) {
	cu := authctx.FromContext(r.Context())
	req, err := h.Service.RequestDataExport(r.Context(), cu.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"request_id": req.ID,
		"status":     req.Status,
		"message":    "Your data export has been requested. You will be notified when it is ready.",
	})
}

func (h AuthHandler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	cu := authctx.FromContext(r.Context())
	if err := h.Service.DeleteAccount(r.Context(), cu.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Account deleted"})
}

func writeUserResult(w http.ResponseWriter, u *domain.User, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUser(*u)})
}

func writeAuthResponse(w http.ResponseWriter, res *service.AuthResult) {
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"user":       toUser(res.User),
	})
}

// deviceInfo prefers the app-supplied device name and guesses the OS from
// the user agent.
func deviceInfo(r *http.Request) (device, os string) {
	ua := r.UserAgent()
	device = strings.TrimSpace(r.Header.Get("X-Device-Name"))
	if device == "" {
		device = ua
	}
	if len(device) > 120 {
		device = device[:120]
	}
	switch lower := strings.ToLower(ua); {
	case strings.Contains(lower, "android"):
		os = "Android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		os = "iOS"
	case strings.Contains(lower, "windows"):
		os = "Windows"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		os = "macOS"
	case strings.Contains(lower, "linux"):
		os = "Linux"
	default:
		os = "Unknown"
	}
	return device, os
}
