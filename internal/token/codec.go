// Package token implements the stateless bearer token used for sessions.
//
// A token is "<plain>.<signature>" where plain is the base64url encoded JSON
// form of the payload and signature is the standard base64 encoding of
// HMAC-SHA512(secret, plain). Tokens carry no expiry; they stay valid for as
// long as the secret does.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

var ErrInvalid = errors.New("invalid token")

var signingMethod = jwt.SigningMethodHS512

type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Sign serializes payload and returns the signed token.
func (c *Codec) Sign(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding token payload: %w", err)
	}

	plain := base64.URLEncoding.EncodeToString(data)
	sig, err := signingMethod.Sign(plain, c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return plain + "." + base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks the token signature and decodes its payload into dst. An
// optional "Bearer " prefix is accepted. Every failure is reported as
// ErrInvalid.
func (c *Codec) Verify(raw string, dst any) error {
	raw = strings.TrimPrefix(raw, bearerPrefix)
	if strings.Count(raw, ".") != 1 {
		return ErrInvalid
	}

	plain, encodedSig, _ := strings.Cut(raw, ".")
	sig, err := base64.StdEncoding.Strict().DecodeString(encodedSig)
	if err != nil {
		return ErrInvalid
	}
	if err := signingMethod.Verify(plain, sig, c.secret); err != nil {
		return ErrInvalid
	}

	data, err := base64.URLEncoding.DecodeString(plain)
	if err != nil {
		return ErrInvalid
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", ErrInvalid)
	}

	return nil
}
