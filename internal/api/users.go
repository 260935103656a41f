package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/avatar"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/blob"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/constants"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/users"
)

// PictureUploader stores raw profile picture uploads.
type PictureUploader interface {
	StoreUpload(ctx context.Context, ownerID string, src io.Reader) (string, error)
	Release(ctx context.Context, ownerID, pictureURL string)
}

type ProfileHandler struct {
	users              *users.Directory
	pictures           PictureUploader
	uploadRequestLimit int64
}

func NewProfileHandler(directory *users.Directory, pictures PictureUploader, uploadRequestLimit int64) *ProfileHandler {
	return &ProfileHandler{users: directory, pictures: pictures, uploadRequestLimit: uploadRequestLimit}
}

// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return
	}

	user, err := h.users.Get(session.ID)
	if errors.Is(err, users.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error loading profile", "error", err, "user_id", session.ID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type UpdateProfileRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=100"`
	Username       *string `json:"username" validate:"omitempty,min=3,max=32"`
	ProfilePicture *string `json:"profilePicture"`
	Pronouns       *string `json:"pronouns" validate:"omitempty,max=40"`
	Description    *string `json:"description" validate:"omitempty,max=500"`
}

// PATCH /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return
	}

	var req UpdateProfileRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), session.ID, users.ProfileUpdate{
		Name:           sanitizeTextPtr(req.Name),
		Username:       req.Username,
		ProfilePicture: req.ProfilePicture,
		Pronouns:       sanitizeTextPtr(req.Pronouns),
		Description:    sanitizeTextPtr(req.Description),
	})
	if !handleProfileError(w, err, session.ID) {
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=4,max=128"`
}

// PUT /api/profile/password
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return
	}

	var req ChangePasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	err := h.users.ChangePassword(r.Context(), session.ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, users.ErrWrongPassword) {
		writeError(w, http.StatusBadRequest, constants.ErrCodeWrongPassword, "Current password is incorrect")
		return
	}
	if !handleProfileError(w, err, session.ID) {
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /api/profile/picture
func (h *ProfileHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUser(r)
	if !ok {
		forbidden(w)
		return
	}

	file, _, cleanup, ok := readSingleFileUpload(w, r, h.uploadRequestLimit)
	if !ok {
		return
	}
	defer cleanup()
	defer file.Close()

	pictureURL, err := h.pictures.StoreUpload(r.Context(), session.ID, file)
	if !handlePictureError(w, err) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), session.ID, users.ProfileUpdate{ProfilePicture: &pictureURL})
	if err != nil {
		h.pictures.Release(context.WithoutCancel(r.Context()), session.ID, pictureURL)
	}
	if !handleProfileError(w, err, session.ID) {
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func handleProfileError(w http.ResponseWriter, err error, userID string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, users.ErrNotFound):
		notFound(w, "User not found")
	case errors.Is(err, users.ErrDuplicateUsername):
		conflict(w, constants.ErrCodeDuplicateUsername, "Username already taken")
	case errors.Is(err, users.ErrUntrustedPicture):
		writeError(w, http.StatusBadRequest, constants.ErrCodeUntrustedPicture, "Profile picture host is not allowed")
	case errors.Is(err, users.ErrInvalidInput):
		badRequest(w, err.Error())
	case errors.Is(err, avatar.ErrInvalidPicture),
		errors.Is(err, blob.ErrFileTooLarge),
		errors.Is(err, blob.ErrDisallowedType),
		errors.Is(err, blob.ErrExecutableFile):
		return handlePictureError(w, err)
	default:
		slog.Error("error updating profile", "error", err, "user_id", userID)
		internalError(w)
	}
	return false
}
