package authkit

import (
	"context"
	"errors"
	"fmt"
)

// guardAccount is the single account-state policy check shared by login,
// refresh, and profile reads. Keeping it in one place means the exists-and-
// active rule cannot drift between call sites.
func guardAccount(account Account, err error) (Account, error) {
	if err != nil {
		if errors.Is(err, ErrStoreUserNotFound) {
			return Account{}, ErrUserNotFound
		}
		return Account{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !account.Active {
		return Account{}, ErrUserInactive
	}
	return account, nil
}

// GetProfile returns the account for a verified access-token subject.
// Deleted accounts return [ErrUserNotFound]; deactivated accounts return
// [ErrUserInactive] so a mid-session deactivation surfaces on the next read.
func (e *Engine) GetProfile(ctx context.Context, accountID string) (*Account, error) {
	if e == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}
	if accountID == "" {
		return nil, ErrUserNotFound
	}

	account, err := guardAccount(e.userStore.GetUserByID(ctx, accountID))
	if err != nil {
		return nil, err
	}

	return &account, nil
}
