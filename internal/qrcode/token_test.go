package qrcode

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	s := NewSigner("secret", time.Hour, "https://track.example")

	token, err := s.Issue(Claims{QRCodeID: "qr-1", ItemInstanceID: "b-1", SourceID: "src", DestinationID: "dst", ItemCount: 4})
	require.NoError(t, err)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "qr-1", claims.QRCodeID)
	assert.Equal(t, "b-1", claims.ItemInstanceID)
	assert.Equal(t, int64(4), claims.ItemCount)
	assert.Equal(t, "https://track.example/api/v1/qr/scan/"+token, s.ScanURL(token))
}

func TestParse_Rejects(t *testing.T) {
	s := NewSigner("secret", time.Hour, "")
	token, err := s.Issue(Claims{QRCodeID: "qr-1"})
	require.NoError(t, err)

	other := NewSigner("another", time.Hour, "")
	_, err = other.Parse(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = s.Parse("not-a-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	expired := NewSigner("secret", time.Minute, "")
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, err := expired.Issue(Claims{QRCodeID: "qr-2"})
	require.NoError(t, err)
	_, err = s.Parse(stale)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}
