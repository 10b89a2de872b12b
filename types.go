package authkit

import "context"

// Account is the identity record owned by the caller's user database. The
// engine reads it through [UserStore] and never mutates it except at
// registration.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Active       bool
}

// UserStore is the interface callers must implement to integrate authkit with
// their user database. Lookups return [ErrStoreUserNotFound] when no account
// matches; CreateUser returns [ErrStoreDuplicateEmail] on a unique-email
// violation.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (Account, error)
	GetUserByID(ctx context.Context, id string) (Account, error)
	CreateUser(ctx context.Context, input CreateUserInput) (Account, error)
}

// CreateUserInput is the input for [UserStore.CreateUser].
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Name         string
	Active       bool
}

// RegisterInput is the input for [Engine.Register]. Email and Password are
// required; Name is an optional profile field passed through to the store.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenPayload is the verified, in-transit content of a token. It is never
// persisted. FamilyID is empty for access tokens.
type TokenPayload struct {
	AccountID string
	Email     string
	TokenType string
	FamilyID  string
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	Account Account
	Tokens  TokenPair
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	Account Account
	Tokens  TokenPair
}
