package handler

import (
	"net/http"

	"hrgate-backend/internal/config"
	"hrgate-backend/internal/server/authctx"
	"hrgate-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Service *service.AuthService
	Config  config.Config
}

func (h AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/login/google", h.loginGoogle)
	r.Post("/forgot_password", h.forgotPassword)
	r.Post("/reset_password", h.resetPassword)
}

func (h AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.logout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	result, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authPayload(result))
}

type googleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
}

func (h AuthHandler) loginGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	result, err := h.Service.LoginWithGoogle(r.Context(), req.IDToken, req.Email)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authPayload(result))
}

func authPayload(result *service.AuthResult) map[string]any {
	return map[string]any{
		"token":      result.Token,
		"expires_at": result.ExpiresAt.UTC().Format("2006-01-02 15:04:05"),
		"user_id":    result.UserID,
		"user_name":  result.UserName,
	}
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	code, err := h.Service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeAppError(w, err)
		return
	}
	payload := map[string]any{"sent": true}
	// Delivery is handled out of band; expose the code only in development.
	if h.Config.IsDevelopment() {
		payload["code"] = code
	}
	writeJSON(w, http.StatusOK, payload)
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (h AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.Service.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reset": true})
}

func (h AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	user := authctx.FromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication_error", "unauthorized")
		return
	}
	if err := h.Service.Logout(r.Context(), user.Token); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logged_out": true})
}
