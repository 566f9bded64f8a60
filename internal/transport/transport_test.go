package transport

import (
	"bytes"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicehall/internal/protocol"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	a := NewAuthenticator("secret", "dicehall")

	tok, err := a.GenerateToken(Identity{UserID: "u1", DisplayName: "Alice", AvatarSeed: "a"})
	require.NoError(t, err)

	id, err := a.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.Equal(t, "a", id.AvatarSeed)
}

func TestAuthenticator_MissingToken(t *testing.T) {
	a := NewAuthenticator("secret", "")
	_, err := a.Verify("")
	assert.Equal(t, ErrMissingToken, err)
}

func TestAuthenticator_WrongSecret(t *testing.T) {
	issuer := NewAuthenticator("secret-a", "")
	verifier := NewAuthenticator("secret-b", "")

	tok, err := issuer.GenerateToken(Identity{UserID: "u1"})
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestAuthenticator_Expired(t *testing.T) {
	a := NewAuthenticator("secret", "")

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = a.Verify(tok)
	assert.Equal(t, ErrExpiredToken, err)
}

func TestAuthenticator_IssuerMismatch(t *testing.T) {
	issuer := NewAuthenticator("secret", "other-service")
	verifier := NewAuthenticator("secret", "dicehall")

	tok, err := issuer.GenerateToken(Identity{UserID: "u1"})
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestAuthenticator_NoKeys(t *testing.T) {
	a := NewAuthenticator("", "")
	_, err := a.Verify("whatever")
	assert.Equal(t, ErrKeysUnavailable, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusForAuthError(err))
	assert.Equal(t, http.StatusUnauthorized, StatusForAuthError(ErrInvalidToken))
}

func TestCodeForAuthError(t *testing.T) {
	assert.Equal(t, protocol.CodeMissingToken, CodeForAuthError(ErrMissingToken))
	assert.Equal(t, protocol.CodeExpiredToken, CodeForAuthError(ErrExpiredToken))
	assert.Equal(t, protocol.CodeJWKSUnavailable, CodeForAuthError(ErrKeysUnavailable))
	assert.Equal(t, protocol.CodeInvalidToken, CodeForAuthError(ErrInvalidToken))
	assert.Equal(t, protocol.CodeInvalidToken, CodeForAuthError(errors.New("garbled")))
}

func TestTokenFromRequest(t *testing.T) {
	r, _ := http.NewRequest("GET", "/ws/lobby?token=from-query", nil)
	assert.Equal(t, "from-query", TokenFromRequest(r))

	r, _ = http.NewRequest("GET", "/ws/lobby", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r))

	r, _ = http.NewRequest("GET", "/ws/lobby", nil)
	assert.Equal(t, "", TokenFromRequest(r))
}

func TestConn_Tags(t *testing.T) {
	c := NewConn(nil, &Identity{UserID: "u1"}, Options{})
	c.AddTag(UserTag("u1"))
	c.AddTag(RoomTag("AB2C9D"))

	assert.True(t, c.HasTag("user:u1"))
	assert.True(t, c.HasTag("room:AB2C9D"))

	c.RemoveTag(RoomTag("AB2C9D"))
	assert.False(t, c.HasTag("room:AB2C9D"))
}

func TestConn_Attachment(t *testing.T) {
	c := NewConn(nil, &Identity{UserID: "u1"}, Options{MaxAttachmentSize: 16})

	assert.Nil(t, c.ReadAttachment())

	require.NoError(t, c.Attach([]byte(`{"room":"AB2C9D"}`)[:16]))
	got := c.ReadAttachment()
	assert.Equal(t, 16, len(got))

	err := c.Attach(bytes.Repeat([]byte("x"), 17))
	assert.Equal(t, ErrAttachmentTooLarge, err)

	// The stored copy is isolated from later caller mutation.
	payload := []byte("abc")
	require.NoError(t, c.Attach(payload))
	payload[0] = 'z'
	assert.Equal(t, []byte("abc"), c.ReadAttachment())
}

func TestHub_TaggedFanout(t *testing.T) {
	h := NewHub()

	a := NewConn(nil, &Identity{UserID: "u1"}, Options{})
	b := NewConn(nil, &Identity{UserID: "u2"}, Options{})
	a.AddTag(RoomTag("R1"))
	a.AddTag(UserTag("u1"))
	b.AddTag(RoomTag("R1"))
	b.AddTag(UserTag("u2"))
	h.Register(a)
	h.Register(b)

	assert.Len(t, h.tagged(RoomTag("R1")), 2)
	assert.Len(t, h.tagged(UserTag("u1")), 1)
	assert.Len(t, h.tagged(UserTag("u3")), 0)

	h.Unregister(a)
	assert.Len(t, h.tagged(RoomTag("R1")), 1)
	assert.Equal(t, 1, h.Len())
}
