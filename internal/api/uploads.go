package api

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/avatar"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/blob"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/constants"
)

// multipartOverhead is the room left for form boundaries and headers on top
// of the file size limit.
const multipartOverhead = 64 << 10

func readSingleFileUpload(
	w http.ResponseWriter,
	r *http.Request,
	maxBytes int64,
) (multipart.File, *multipart.FileHeader, func(), bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}

	err := r.ParseMultipartForm(1 << 20)
	if err != nil {
		if isBodyTooLargeError(err) {
			payloadTooLarge(w, "File exceeds maximum upload size")
		} else {
			badRequest(w, "Invalid multipart upload")
		}
		return nil, nil, func() {}, false
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		cleanup()
		badRequest(w, "File field 'file' is required")
		return nil, nil, func() {}, false
	}

	if maxBytes > 0 && fileHeader.Size > maxBytes {
		file.Close()
		cleanup()
		payloadTooLarge(w, "File exceeds maximum upload size")
		return nil, nil, func() {}, false
	}

	return file, fileHeader, cleanup, true
}

// handlePictureError maps picture decoding and storage failures. It returns
// true when err is nil.
func handlePictureError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, blob.ErrFileTooLarge):
		payloadTooLarge(w, "File exceeds maximum upload size")
	case errors.Is(err, blob.ErrDisallowedType):
		writeError(w, http.StatusBadRequest, constants.ErrCodeAttachmentInvalid, "Unsupported file type")
	case errors.Is(err, blob.ErrExecutableFile):
		writeError(w, http.StatusBadRequest, constants.ErrCodeAttachmentInvalid, "Executable files are not allowed")
	case errors.Is(err, avatar.ErrInvalidPicture):
		writeError(w, http.StatusBadRequest, constants.ErrCodeAttachmentInvalid, "Invalid image file")
	default:
		slog.Error("error storing profile picture", "error", err)
		internalError(w)
	}
	return false
}

func isBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}
