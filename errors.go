package authkit

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists is an exported constant or variable used by the authentication engine.
	ErrEmailExists = errors.New("email already registered")
	// ErrUserInactive is an exported constant or variable used by the authentication engine.
	ErrUserInactive = errors.New("user inactive")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailInvalid is an exported constant or variable used by the authentication engine.
	ErrEmailInvalid = errors.New("invalid email")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is an exported constant or variable used by the authentication engine.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// Sentinels the UserStore implementation must return so the engine can map
// storage outcomes onto the public taxonomy without inspecting driver errors.
var (
	// ErrStoreDuplicateEmail is an exported constant or variable used by the authentication engine.
	ErrStoreDuplicateEmail = errors.New("store: duplicate email")
	// ErrStoreUserNotFound is an exported constant or variable used by the authentication engine.
	ErrStoreUserNotFound = errors.New("store: user not found")
)

// statusCodes is the closed mapping from the error taxonomy to HTTP status
// codes. The HTTP layer consumes it through StatusCode; the engine itself
// never writes responses.
var statusCodes = map[error]int{
	ErrInvalidCredentials: http.StatusUnauthorized,
	ErrTokenInvalid:       http.StatusUnauthorized,
	ErrTokenExpired:       http.StatusUnauthorized,
	ErrTokenRevoked:       http.StatusUnauthorized,
	ErrUserInactive:       http.StatusUnauthorized,
	ErrEmailExists:        http.StatusConflict,
	ErrEmailInvalid:       http.StatusBadRequest,
	ErrPasswordPolicy:     http.StatusBadRequest,
	// Boundaries worried about account enumeration may fold this into 401.
	ErrUserNotFound: http.StatusNotFound,
}

// StatusCode maps an engine error to the HTTP status code the transport layer
// should respond with. Unrecognized errors (wrapped storage failures and the
// like) map to 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for sentinel, code := range statusCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return http.StatusInternalServerError
}
