package qrcode

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// ErrInvalidToken is returned for tokens that are malformed, expired or signed
// with another key.
var ErrInvalidToken = errors.New("invalid qr token")

const issuer = "supplytrack"

// Claims is the payload printed into a hand-off label.
type Claims struct {
	QRCodeID       string `json:"qr"`
	ItemInstanceID string `json:"batch"`
	SourceID       string `json:"src"`
	DestinationID  string `json:"dst"`
	ItemCount      int64  `json:"count"`
	jwt.StandardClaims
}

// Signer issues and verifies QR tokens with an HMAC key.
type Signer struct {
	key     []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

// NewSigner creates a signer. A zero ttl issues tokens that never expire.
func NewSigner(key string, ttl time.Duration, baseURL string) *Signer {
	return &Signer{key: []byte(key), ttl: ttl, baseURL: baseURL, now: time.Now}
}

// Issue signs claims for the given QR code.
func (s *Signer) Issue(c Claims) (string, error) {
	now := s.now()
	c.Issuer = issuer
	c.Id = c.QRCodeID
	c.IssuedAt = now.Unix()
	if s.ttl > 0 {
		c.ExpiresAt = now.Add(s.ttl).Unix()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign qr token: %w", err)
	}
	return token, nil
}

// Parse verifies a token and returns its claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Issuer != issuer || claims.QRCodeID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ScanURL returns the link encoded into the printed QR image.
func (s *Signer) ScanURL(token string) string {
	if s.baseURL == "" {
		return token
	}
	return s.baseURL + "/api/v1/qr/scan/" + token
}
