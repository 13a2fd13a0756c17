// backend/src/handlers/auth_handler.go
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/username/fintrack/backend/src/config"
	"github.com/username/fintrack/backend/src/database"
	"github.com/username/fintrack/backend/src/logger"
	"github.com/username/fintrack/backend/src/models"
	"github.com/username/fintrack/backend/src/security"
	"github.com/username/fintrack/backend/src/utils"
)

type AuthHandler struct {
	authService *security.AuthService
}

func NewAuthHandler(authService *security.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" {
		utils.SendJSONError(w, "Username and email are required", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.Email, "@") {
		utils.SendJSONError(w, "Invalid email address", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		utils.SendJSONError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	if _, err := models.GetUserByEmail(database.DB, req.Email); err == nil {
		utils.SendJSONError(w, "An account with that email already exists", http.StatusBadRequest)
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.FromContext(r.Context()).Error("Failed to check for existing user", "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	user := &models.User{Username: req.Username, Email: req.Email}
	if err := user.HashPassword(req.Password); err != nil {
		logger.FromContext(r.Context()).Error("Failed to hash password", "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}
	if err := user.CreateUser(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create user", "error", err)
		utils.SendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	token, err := h.authService.GenerateToken(user.ID, config.Cfg.AccessTokenExpiry)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to generate token after registration", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("User registered", "userID", user.ID)
	utils.SendJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (h *AuthHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := models.GetUserByEmail(database.DB, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch user for login", "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	if err := user.CheckPassword(req.Password); err != nil {
		logger.FromContext(r.Context()).Warn("Password mismatch on login", "userID", user.ID)
		utils.SendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken(user.ID, config.Cfg.AccessTokenExpiry)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to generate token", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("User logged in", "userID", user.ID)
	utils.SendJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
