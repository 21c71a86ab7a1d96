package signx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultTokenLifetime applies when a token is generated without an explicit
// expiration.
const DefaultTokenLifetime = 7 * 24 * time.Hour

// ErrTokenExpired reports a token whose signature is valid but whose embedded
// expiration is in the past.
var ErrTokenExpired = errors.New("signx: token expired")

// TokenData is the decoded content of a bearer token.
type TokenData struct {
	UserID     int64
	Expiration time.Time
}

// tokenPayload is the serialized token body. Field names are single letters
// to keep the token compact; expiration is unix milliseconds.
type tokenPayload struct {
	UserID     int64 `json:"u"`
	Expiration int64 `json:"e"`
}

// TokenManager encodes and decodes stateless signed bearer tokens. Tokens are
// valid until their embedded expiration and cannot be revoked.
type TokenManager struct {
	keys *KeyManager
}

func NewTokenManager(keys *KeyManager) *TokenManager {
	return &TokenManager{keys: keys}
}

// Generate serializes {userID, expiration}, signs it and returns the framed
// result base64url encoded without padding. A zero expiration means now plus
// DefaultTokenLifetime.
func (t *TokenManager) Generate(ctx context.Context, userID int64, expiration time.Time) (string, error) {
	if expiration.IsZero() {
		expiration = time.Now().Add(DefaultTokenLifetime)
	}

	payload, err := json.Marshal(tokenPayload{
		UserID:     userID,
		Expiration: expiration.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("signx: encode token payload: %w", err)
	}

	framed, err := t.keys.Sign(ctx, payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(framed), nil
}

// Parse decodes and verifies a token. Tampered or malformed tokens fail with
// ErrInvalidSignature, expired ones with ErrTokenExpired. No other validation
// is performed.
func (t *TokenManager) Parse(ctx context.Context, token string) (TokenData, error) {
	framed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return TokenData{}, ErrInvalidSignature
	}

	payload, err := t.keys.Verify(ctx, framed)
	if err != nil {
		return TokenData{}, err
	}

	var p tokenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return TokenData{}, fmt.Errorf("signx: decode token payload: %w", err)
	}

	data := TokenData{
		UserID:     p.UserID,
		Expiration: time.UnixMilli(p.Expiration),
	}
	if data.Expiration.Before(time.Now()) {
		return TokenData{}, ErrTokenExpired
	}
	return data, nil
}
