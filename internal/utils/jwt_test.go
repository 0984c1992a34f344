package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
    tok, err := NewAccessToken("s3cret", "client-42", "client", 5)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().Add(5*time.Minute), tok.Exp, 5*time.Second)

    parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
    require.NoError(t, err)
    claims := parsed.Claims.(jwt.MapClaims)
    sub, err := claims.GetSubject()
    require.NoError(t, err)
    assert.Equal(t, "client-42", sub)
    assert.Equal(t, "CLIENT", claims["role"])
}

func TestNewAccessTokenRejectsEmptyInput(t *testing.T) {
    _, err := NewAccessToken("", "a", "CLIENT", 5)
    assert.Error(t, err)
    _, err = NewAccessToken("s", " ", "CLIENT", 5)
    assert.Error(t, err)
}
