package authkit

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/coachbase/authkit/jwt"
	"github.com/coachbase/authkit/refresh"
)

// Refresh rotates a refresh token: the presented token's record is revoked
// with reason "rotated" and a new pair is minted under the same family.
//
// Breach handling is deliberately aggressive. A structurally valid token
// whose hash matches no record in its family is treated as stolen-and-reused
// and the whole family is revoked before [ErrTokenInvalid] is returned. A
// token matching an already-revoked record means the token was spent twice;
// the family is revoked again (idempotent) and [ErrTokenRevoked] is
// returned. In both cases the family kill completes before the caller sees
// the error.
//
// Checks are ordered: malformed, unknown-in-family, revoked, expired,
// account state. Expiry of the stored record never triggers a family kill.
func (e *Engine) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	if e == nil || e.jwtManager == nil || e.refreshStore == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(rawToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, jwt.ErrExpired) {
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrTokenExpired, nil)
			return nil, ErrTokenExpired
		}
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	if claims.TokenType != jwt.TypeRefresh || claims.FID == "" {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UID, "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "wrong_token_type"}
		})
		return nil, ErrTokenInvalid
	}

	familyID := claims.FID

	records, err := e.refreshStore.FamilyRecords(ctx, familyID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Full scan without early exit keeps the comparison work independent of
	// where (or whether) the presented hash sits in the family.
	hash := refresh.HashToken(rawToken)
	var matched *refresh.Record
	for _, rec := range records {
		if subtle.ConstantTimeCompare(rec.TokenHash[:], hash[:]) == 1 && matched == nil {
			matched = rec
		}
	}

	if matched == nil {
		e.killFamily(ctx, claims.UID, familyID, refresh.ReasonReuseSuspected)
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventReuseDetected, false, claims.UID, familyID, ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	if matched.Revoked {
		e.killFamily(ctx, claims.UID, familyID, refresh.ReasonRevokedReuse)
		e.metricInc(MetricRevokedTokenReuse)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRevokedTokenReuse, false, claims.UID, familyID, ErrTokenRevoked, func() map[string]string {
			return map[string]string{"original_reason": matched.Reason.String()}
		})
		return nil, ErrTokenRevoked
	}

	now := time.Now()
	if matched.ExpiresAt <= now.Unix() {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UID, familyID, ErrTokenExpired, nil)
		return nil, ErrTokenExpired
	}

	account, err := guardAccount(e.userStore.GetUserByID(ctx, claims.UID))
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserInactive) {
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UID, familyID, ErrUserInactive, nil)
			return nil, ErrUserInactive
		}
		return nil, err
	}

	status, err := e.refreshStore.RevokeRecord(ctx, familyID, matched.ID, refresh.ReasonRotated, now)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch status {
	case refresh.RevokeDone:
	case refresh.RevokeAlreadyRevoked:
		// A concurrent rotation won the CAS between our read and this write.
		// The token has now been spent twice, which is indistinguishable
		// from replay of a revoked token.
		e.killFamily(ctx, claims.UID, familyID, refresh.ReasonRevokedReuse)
		e.metricInc(MetricRevokedTokenReuse)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRevokedTokenReuse, false, claims.UID, familyID, ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	case refresh.RevokeNotFound:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UID, familyID, ErrTokenExpired, nil)
		return nil, ErrTokenExpired
	default:
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: unexpected revoke status %d", ErrStoreUnavailable, status)
	}

	pair, err := e.mintPair(ctx, account, familyID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, account.ID, familyID, nil, nil)

	return &pair, nil
}

// killFamily revokes every live record in a family. It fails closed: a store
// error here is logged and swallowed because the caller is already returning
// a rejection, and the next presentation of any family token re-triggers the
// kill.
func (e *Engine) killFamily(ctx context.Context, accountID, familyID string, reason refresh.Reason) {
	flipped, err := e.refreshStore.RevokeFamily(ctx, familyID, reason, time.Now())
	if err != nil {
		log.Print("authkit: family revoke failed: ", err)
		return
	}
	if flipped > 0 {
		e.metricInc(MetricFamilyRevoked)
	}
	e.emitAudit(ctx, auditEventFamilyRevoked, true, accountID, familyID, nil, func() map[string]string {
		return map[string]string{
			"reason":  reason.String(),
			"flipped": fmt.Sprintf("%d", flipped),
		}
	})
}
