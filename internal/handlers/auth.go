package handlers

import (
	"log"
	"net/http"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	jwtAuth *middleware.JWTAuthMiddleware
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(jwtAuth *middleware.JWTAuthMiddleware) *AuthHandler {
	return &AuthHandler{
		jwtAuth: jwtAuth,
	}
}

// SetupRoutes sets up authentication routes
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/verify", h.handleVerify)
}

// handleLogin handles POST /auth/login
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	user, ok := h.jwtAuth.ValidateCredentials(req.Username, req.Password)
	if !ok {
		log.Printf("AuthHandler: Failed login attempt for user '%s' from %s", req.Username, r.RemoteAddr)
		api.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.jwtAuth.GenerateToken(user.Username)
	if err != nil {
		log.Printf("AuthHandler: Failed to generate token for user '%s': %v", user.Username, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	log.Printf("AuthHandler: User '%s' logged in successfully from %s", user.Username, r.RemoteAddr)

	api.RespondJSON(w, http.StatusOK, api.LoginResponse{
		Token:     token,
		Username:  user.Username,
		ExpiresIn: 24 * 60 * 60,
	})
}

// handleVerify handles GET /auth/verify - verifies if the current token is valid
func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		api.RespondErrorWithCode(w, http.StatusUnauthorized, api.CodeAuthRequired, "Not authenticated")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"user":  api.UserToResponse(*user),
	})
}
