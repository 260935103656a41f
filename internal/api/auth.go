package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/constants"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/token"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/users"
)

type AuthHandler struct {
	users *users.Directory
	codec *token.Codec
}

func NewAuthHandler(directory *users.Directory, codec *token.Codec) *AuthHandler {
	return &AuthHandler{users: directory, codec: codec}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if errors.Is(err, users.ErrAuthFailed) {
		loginFailed(w)
		return
	}
	if err != nil {
		slog.Error("error authenticating user", "error", err)
		internalError(w)
		return
	}

	h.writeSession(w, http.StatusOK, user)
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=4,max=128"`
}

// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), sanitizeText(req.Name), req.Username, req.Password)
	switch {
	case errors.Is(err, users.ErrDuplicateUsername):
		conflict(w, constants.ErrCodeDuplicateUsername, "Username already taken")
		return
	case errors.Is(err, users.ErrInvalidInput):
		badRequest(w, err.Error())
		return
	case err != nil:
		slog.Error("error registering user", "error", err)
		internalError(w)
		return
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, user)
}

type GreetingResponse struct {
	Message string `json:"message"`
}

// GET /api/greet-me
func (h *AuthHandler) GreetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return
	}

	writeJSON(w, http.StatusOK, GreetingResponse{Message: fmt.Sprintf("Hi %s!", user.Name)})
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, user models.User) {
	signed, err := h.codec.Sign(user)
	if err != nil {
		slog.Error("error signing session token", "error", err, "user_id", user.ID)
		internalError(w)
		return
	}

	writeJSON(w, status, LoginResponse{Token: signed, User: user})
}
