package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachbase/authkit/jwt"
	"github.com/coachbase/authkit/password"
	"github.com/coachbase/authkit/refresh"
)

// Engine defines a public type used by authkit APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	refreshStore *refresh.Store
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	userStore    UserStore
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// StorePing reports refresh-store availability and round-trip latency.
func (e *Engine) StorePing(ctx context.Context) (time.Duration, error) {
	if e == nil || e.refreshStore == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.refreshStore.Ping(ctx)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return d, nil
}

// Login verifies credentials and, on success, mints an access token plus the
// first refresh token of a brand-new rotation family.
//
// An unknown email and a wrong password return the same
// [ErrInvalidCredentials]; the unknown-email path burns an equivalent argon2
// verification so response timing does not distinguish the two. A valid
// password on a deactivated account returns [ErrUserInactive].
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil || e.jwtManager == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}

	if email == "" || pass == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "empty_input"}
		})
		return nil, ErrInvalidCredentials
	}

	account, err := e.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrStoreUserNotFound) {
			e.passwordHash.DummyVerify(pass)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"reason": "user_not_found"}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(pass, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "password_mismatch"}
		})
		return nil, ErrInvalidCredentials
	}

	if !account.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, "", ErrUserInactive, nil)
		return nil, ErrUserInactive
	}

	tokens, familyID, err := e.issueTokenFamily(ctx, account)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, familyID, nil, nil)

	return &LoginResult{Account: account, Tokens: tokens}, nil
}

// VerifyAccessToken checks an access token's signature, expiry, and type tag
// and returns its payload. Refresh tokens presented here are rejected with
// [ErrTokenInvalid].
func (e *Engine) VerifyAccessToken(tokenStr string) (*TokenPayload, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims.TokenType != jwt.TypeAccess {
		return nil, ErrTokenInvalid
	}

	e.metricInc(MetricAccessVerified)

	return &TokenPayload{
		AccountID: claims.UID,
		Email:     claims.Email,
		TokenType: claims.TokenType,
		FamilyID:  claims.FID,
	}, nil
}

// issueTokenFamily mints a fresh access/refresh pair under a brand-new family
// and persists the refresh record. Used by both login and register; rotation
// reuses the existing family instead.
func (e *Engine) issueTokenFamily(ctx context.Context, account Account) (TokenPair, string, error) {
	familyID := refresh.NewFamilyID()

	pair, err := e.mintPair(ctx, account, familyID)
	if err != nil {
		return TokenPair{}, "", err
	}

	return pair, familyID, nil
}

// Refresh record metadata fields are length-prefixed with a single byte, so
// the store rejects anything longer. The fields are forensic only; oversized
// values (in-app browser user agents regularly pass 300 bytes) are clamped
// rather than failing the auth call.
const maxRecordMetaBytes = 255

func clampMeta(s string) string {
	if len(s) <= maxRecordMetaBytes {
		return s
	}
	return s[:maxRecordMetaBytes]
}

// mintPair signs a token pair bound to familyID and persists the refresh
// record before returning. The record is durable by the time the caller sees
// the tokens, so a crash cannot hand out a refresh token the store has never
// heard of.
func (e *Engine) mintPair(ctx context.Context, account Account, familyID string) (TokenPair, error) {
	accessToken, err := e.jwtManager.CreateAccess(account.ID, account.Email)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := e.jwtManager.CreateRefresh(account.ID, account.Email, familyID)
	if err != nil {
		return TokenPair{}, err
	}

	now := time.Now()
	rec := &refresh.Record{
		ID:        refresh.NewRecordID(),
		AccountID: account.ID,
		FamilyID:  familyID,
		TokenHash: refresh.HashToken(refreshToken),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.JWT.RefreshTTL).Unix(),
		Device:    clampMeta(deviceFromContext(ctx)),
		UserAgent: clampMeta(userAgentFromContext(ctx)),
		IP:        clampMeta(clientIPFromContext(ctx)),
	}

	if err := e.refreshStore.Create(ctx, rec, e.config.JWT.RefreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTokenPairIssued)

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
