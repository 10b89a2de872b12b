package authkit

import (
	"context"
	"crypto/subtle"
	"log"
	"time"

	"github.com/coachbase/authkit/jwt"
	"github.com/coachbase/authkit/refresh"
)

// Logout revokes the presented refresh token's record with reason "logout".
// It is best effort and always returns nil: an invalid, expired, or
// already-revoked token means there is nothing left to revoke, and a store
// outage must not block a client from clearing its local state. Repeating a
// logout is a no-op.
func (e *Engine) Logout(ctx context.Context, rawToken string) error {
	if e == nil || e.jwtManager == nil || e.refreshStore == nil {
		return nil
	}

	claims, err := e.jwtManager.Parse(rawToken)
	if err != nil {
		return nil
	}
	if claims.TokenType != jwt.TypeRefresh || claims.FID == "" {
		return nil
	}

	records, err := e.refreshStore.FamilyRecords(ctx, claims.FID)
	if err != nil {
		log.Print("authkit: logout record lookup failed: ", err)
		return nil
	}

	hash := refresh.HashToken(rawToken)
	var matched *refresh.Record
	for _, rec := range records {
		if subtle.ConstantTimeCompare(rec.TokenHash[:], hash[:]) == 1 && matched == nil {
			matched = rec
		}
	}
	if matched == nil || matched.Revoked {
		return nil
	}

	status, err := e.refreshStore.RevokeRecord(ctx, claims.FID, matched.ID, refresh.ReasonLogout, time.Now())
	if err != nil {
		log.Print("authkit: logout revoke failed: ", err)
		return nil
	}

	if status == refresh.RevokeDone {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, claims.UID, claims.FID, nil, nil)
	}

	return nil
}
