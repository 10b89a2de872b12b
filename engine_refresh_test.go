package authkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coachbase/authkit/refresh"
)

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	res := registerTestUser(t, engine, "a@x.com", "Password123")
	r1 := res.Tokens.RefreshToken

	pair2, err := engine.Refresh(context.Background(), r1)
	if err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if pair2.RefreshToken == r1 {
		t.Fatal("expected a new refresh token after rotation")
	}

	// Replaying the spent token is reuse of a revoked record.
	if _, err := engine.Refresh(context.Background(), r1); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on replay, got %v", err)
	}
}

func TestRefreshReplayKillsWholeFamily(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	res := registerTestUser(t, engine, "a@x.com", "Password123")
	r1 := res.Tokens.RefreshToken

	pair2, err := engine.Refresh(context.Background(), r1)
	if err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	pair3, err := engine.Refresh(context.Background(), pair2.RefreshToken)
	if err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	// Attacker replays the oldest token in the chain.
	if _, err := engine.Refresh(context.Background(), r1); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on replay, got %v", err)
	}

	// The kill must have propagated to the current token too.
	if _, err := engine.Refresh(context.Background(), pair3.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected current token to be dead after family kill, got %v", err)
	}
}

func TestRefreshUnknownHashInFamilyKillsFamily(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	res := registerTestUser(t, engine, "a@x.com", "Password123")

	payload, err := engine.jwtManager.Parse(res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// Structurally valid token in the right family whose hash was never
	// recorded: the signing key leaked or the store lost a write. Either way
	// it must nuke the family.
	forged, err := engine.jwtManager.CreateRefresh(payload.UID, payload.Email, payload.FID)
	if err != nil {
		t.Fatalf("forge failed: %v", err)
	}

	if _, err := engine.Refresh(context.Background(), forged); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for unknown hash, got %v", err)
	}

	if _, err := engine.Refresh(context.Background(), res.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected legitimate token dead after family kill, got %v", err)
	}
}

func TestRefreshStoredExpiryNoFamilyKill(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	res := registerTestUser(t, engine, "a@x.com", "Password123")

	payload, err := engine.jwtManager.Parse(res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// Second record in the same family, already past its stored expiry even
	// though the JWT itself still verifies.
	staleToken, err := engine.jwtManager.CreateRefresh(payload.UID, payload.Email, payload.FID)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	rec := &refresh.Record{
		ID:        refresh.NewRecordID(),
		AccountID: payload.UID,
		FamilyID:  payload.FID,
		TokenHash: refresh.HashToken(staleToken),
		CreatedAt: time.Now().Add(-2 * time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}
	if err := engine.refreshStore.Create(context.Background(), rec, time.Hour); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	if _, err := engine.Refresh(context.Background(), staleToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// Expiry is not a breach signal; the live token must still rotate.
	if _, err := engine.Refresh(context.Background(), res.Tokens.RefreshToken); err != nil {
		t.Fatalf("expected live token to survive, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	res := registerTestUser(t, engine, "a@x.com", "Password123")

	if _, err := engine.Refresh(context.Background(), res.Tokens.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for access token, got %v", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	if _, err := engine.Refresh(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestRefreshInactiveAccount(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	res := registerTestUser(t, engine, "a@x.com", "Password123")
	store.setActive(res.Account.ID, false)

	if _, err := engine.Refresh(context.Background(), res.Tokens.RefreshToken); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	res := registerTestUser(t, engine, "a@x.com", "Password123")
	r1 := res.Tokens.RefreshToken

	if err := engine.Logout(context.Background(), r1); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if err := engine.Logout(context.Background(), r1); err != nil {
		t.Fatalf("repeated logout failed: %v", err)
	}
	if err := engine.Logout(context.Background(), "garbage"); err != nil {
		t.Fatalf("logout with invalid token failed: %v", err)
	}

	// A logged-out token presented for refresh reads as reuse of a revoked
	// record.
	if _, err := engine.Refresh(context.Background(), r1); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}
}

func TestRefreshAfterLoginThenLogoutOtherSessionSurvives(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	registerTestUser(t, engine, "a@x.com", "Password123")

	first, err := engine.Login(context.Background(), "a@x.com", "Password123")
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	second, err := engine.Login(context.Background(), "a@x.com", "Password123")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	if err := engine.Logout(context.Background(), first.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	// Families are independent; killing one session leaves the other intact.
	if _, err := engine.Refresh(context.Background(), second.Tokens.RefreshToken); err != nil {
		t.Fatalf("expected second session to survive, got %v", err)
	}
}

func TestRefreshRequiresUserStore(t *testing.T) {
	store := newMockUserStore()
	engine, _, done := newTestEngine(t, testConfig(), store)
	defer done()

	res := registerTestUser(t, engine, "a@x.com", "Password123")

	partial := *engine
	partial.userStore = nil
	if _, err := partial.Refresh(context.Background(), res.Tokens.RefreshToken); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady without a user store, got %v", err)
	}
}
