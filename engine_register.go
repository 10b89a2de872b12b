package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const minPasswordBytes = 8

// Register creates an account and signs it in, minting the first token pair
// of a brand-new rotation family. A malformed email returns [ErrEmailInvalid]
// and a too-short password returns [ErrPasswordPolicy]. A duplicate email
// returns [ErrEmailExists]; the uniqueness decision belongs to the caller's
// [UserStore], which reports it as [ErrStoreDuplicateEmail].
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	if e == nil || e.passwordHash == nil || e.jwtManager == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(input.Email)
	if !validEmail(email) {
		return nil, ErrEmailInvalid
	}
	if len(input.Password) < minPasswordBytes {
		return nil, fmt.Errorf("%w: minimum %d bytes", ErrPasswordPolicy, minPasswordBytes)
	}

	hash, err := e.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	account, err := e.userStore.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(input.Name),
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, ErrStoreDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrEmailExists, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrEmailExists
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tokens, familyID, err := e.issueTokenFamily(ctx, account)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, account.ID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, account.ID, familyID, nil, nil)

	return &RegisterResult{Account: account, Tokens: tokens}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	return len(email) <= 254
}
