package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenMalformed is returned for tokens that do not have the signed layout.
	ErrTokenMalformed = errors.New("malformed download token")
	// ErrTokenSignature is returned when the token was not signed with our secret.
	ErrTokenSignature = errors.New("invalid download token signature")
	// ErrTokenExpired is returned once the token lifetime has passed.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadClaims is the payload carried by a download token.
type DownloadClaims struct {
	RequestID string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports how long issued tokens stay valid.
func (s *SignedURLSigner) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token granting access to relPath on behalf of the export request.
func (s *SignedURLSigner) Sign(requestID, relPath string) (string, time.Time, error) {
	if requestID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("%w: request id and path required", ErrTokenMalformed)
	}
	if strings.Contains(requestID, ".") {
		return "", time.Time{}, fmt.Errorf("%w: request id may not contain dots", ErrTokenMalformed)
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	signature := s.sign(requestID, exp, encodedPath)
	return strings.Join([]string{requestID, exp, encodedPath, signature}, "."), expiresAt, nil
}

// Verify checks the signature and lifetime of token. Expired tokens are still
// decoded when allowExpired is set so cleanup can map them back to files.
func (s *SignedURLSigner) Verify(token string, allowExpired bool) (*DownloadClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrTokenMalformed
	}
	requestID, exp, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(requestID, exp, encodedPath)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrTokenSignature
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: expiry: %v", ErrTokenMalformed, err)
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return nil, fmt.Errorf("%w: path: %v", ErrTokenMalformed, err)
	}
	claims := &DownloadClaims{RequestID: requestID, Path: string(rawPath), ExpiresAt: time.Unix(expUnix, 0)}
	if !allowExpired && s.now().After(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

func (s *SignedURLSigner) sign(requestID, exp, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(requestID + "|" + exp + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
