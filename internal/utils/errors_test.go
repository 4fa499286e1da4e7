package utils

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	err := E(CodeInvalidArgument, "Gateway.Complete", "unknown model", ErrUnknownModel)

	assert.True(t, IsCode(err, CodeInvalidArgument))
	assert.False(t, IsCode(err, CodeInternal))
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Contains(t, err.Error(), "Gateway.Complete")
	assert.Contains(t, err.Error(), "unknown model")
}

func TestIsCodeOnPlainError(t *testing.T) {
	assert.False(t, IsCode(errors.New("plain"), CodeInternal))
	assert.False(t, IsCode(nil, CodeInternal))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeResourceExhausted, http.StatusTooManyRequests},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(E(tc.code, "op", "msg", nil)), string(tc.code))
	}

	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	assert.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, CheckPassword(hash, "s3cret"))
	assert.Error(t, CheckPassword(hash, "wrong"))
}
