package authkit

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrTokenInvalid, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{ErrTokenRevoked, http.StatusUnauthorized},
		{ErrUserInactive, http.StatusUnauthorized},
		{ErrEmailExists, http.StatusConflict},
		{ErrEmailInvalid, http.StatusBadRequest},
		{ErrPasswordPolicy, http.StatusBadRequest},
		{ErrUserNotFound, http.StatusNotFound},
		{ErrStoreUnavailable, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		if got := StatusCode(c.err); got != c.want {
			t.Fatalf("StatusCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestStatusCodeSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", ErrTokenRevoked)
	if got := StatusCode(wrapped); got != http.StatusUnauthorized {
		t.Fatalf("StatusCode(wrapped) = %d, want 401", got)
	}
}
