package constants

const (
	ErrCodeAuthRequired      = "AUTH_REQUIRED"
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeAttachmentInvalid = "ATTACHMENT_INVALID"

	// Deck and profile domain errors
	ErrCodeDuplicateUsername = "DUPLICATE_USERNAME"
	ErrCodeWrongPassword     = "WRONG_CURRENT_PASSWORD"
	ErrCodeInvalidCards      = "INVALID_CARDS"
	ErrCodeInvalidCount      = "INVALID_COUNT"
	ErrCodeCardNotFound      = "CARD_NOT_FOUND"
	ErrCodeCardNotInDeck     = "CARD_NOT_FOUND_IN_DECK"
	ErrCodeUntrustedPicture  = "UNTRUSTED_PICTURE"
)
