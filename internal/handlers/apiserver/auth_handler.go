package apiserver

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"banter/internal/auth"
	"banter/internal/config"
	"banter/internal/middleware"
	"banter/internal/models"
	"banter/internal/storage"
)

var namePattern = regexp.MustCompile(`^[\w-]{1,30}$`)

// AuthHandler serves account registration, login and logout.
type AuthHandler struct {
	repo      storage.Repository
	blacklist auth.TokenBlacklist
	authCfg   config.AuthConfig
	logger    *log.Logger
}

// NewAuthHandler creates the auth endpoints.
func NewAuthHandler(repo storage.Repository, blacklist auth.TokenBlacklist, authCfg config.AuthConfig, logger *log.Logger) *AuthHandler {
	return &AuthHandler{repo: repo, blacklist: blacklist, authCfg: authCfg, logger: logger}
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type sessionResponse struct {
	Token string          `json:"token"`
	User  models.UserView `json:"user"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Register creates an account and issues a session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !namePattern.MatchString(req.Name) {
		respondError(w, http.StatusBadRequest, "names may only contain letters, numbers, dash and underscore, up to 30 characters")
		return
	}
	if len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "passwords need at least 6 characters")
		return
	}

	if _, err := h.repo.GetUserByName(r.Context(), req.Name); err == nil {
		respondError(w, http.StatusConflict, "that name is already taken")
		return
	} else if err != storage.ErrUserNotFound {
		h.logger.Printf("register lookup: %v", err)
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Printf("register hash: %v", err)
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := &models.ChatUser{
		Name:           req.Name,
		HashedPassword: hashed,
		Email:          req.Email,
		Status:         models.StatusOffline,
		LastActivity:   time.Now().UTC(),
	}
	if req.Email != "" {
		user.Hash = fmt.Sprintf("%x", md5.Sum([]byte(strings.ToLower(strings.TrimSpace(req.Email)))))
	}
	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		h.logger.Printf("register create: %v", err)
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.issueSession(w, user)
}

// Login verifies credentials and issues a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.GetUserByName(r.Context(), req.Name)
	if err != nil || !auth.CheckPasswordHash(req.Password, user.HashedPassword) {
		respondError(w, http.StatusUnauthorized, "wrong name or password")
		return
	}

	h.issueSession(w, user)
}

// Logout revokes the presented session token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no session")
		return
	}

	if err := h.blacklist.Add(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		h.logger.Printf("logout revoke %s: %v", claims.ID, err)
		respondError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) issueSession(w http.ResponseWriter, user *models.ChatUser) {
	token, err := auth.GenerateToken(user.ID, user.Name, "", h.authCfg)
	if err != nil {
		h.logger.Printf("issue session for %s: %v", user.Name, err)
		respondError(w, http.StatusInternalServerError, "could not issue session")
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Token: token, User: models.NewUserView(user)})
}
