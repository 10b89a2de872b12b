package refresh

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := &Record{
		ID:        "rec-1",
		AccountID: "u1",
		FamilyID:  "fam-1",
		TokenHash: [32]byte{1, 2, 3},
		Revoked:   true,
		Reason:    ReasonLogout,
		RevokedAt: 1700000100,
		CreatedAt: 1700000000,
		ExpiresAt: 1700003600,
		Device:    "phone",
		UserAgent: "test-agent",
		IP:        "192.0.2.1",
	}

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if *got != *rec {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}
}

func TestRevocationHeaderOffsets(t *testing.T) {
	rec := &Record{
		ID:        "rec-1",
		AccountID: "u1",
		FamilyID:  "fam-1",
		CreatedAt: 1700000000,
		ExpiresAt: 1700003600,
	}

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Splice the header exactly the way the Lua scripts do and verify the
	// decoder sees the flip.
	header := revocationHeader(ReasonReuseSuspected, 1700000500)
	spliced := append(append(data[:revokedFlagOffset:revokedFlagOffset], header...), data[revokedFlagOffset+revocationHeaderLen:]...)

	got, err := Decode(spliced)
	if err != nil {
		t.Fatalf("Decode of spliced blob failed: %v", err)
	}
	if !got.Revoked || got.Reason != ReasonReuseSuspected || got.RevokedAt != 1700000500 {
		t.Fatalf("splice not visible to decoder: %+v", got)
	}
	if got.CreatedAt != rec.CreatedAt || got.ExpiresAt != rec.ExpiresAt || got.ID != rec.ID {
		t.Fatalf("splice damaged the record tail: %+v", got)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected error for empty blob")
	}
	if _, err := Decode([]byte{99}); err == nil {
		t.Fatal("expected error for unknown version")
	}

	rec := &Record{ID: "rec-1", AccountID: "u1", FamilyID: "fam-1"}
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := Decode(data[:len(data)-3]); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}

func TestEncodeRejectsOversizedField(t *testing.T) {
	rec := &Record{
		ID:        "rec-1",
		AccountID: "u1",
		FamilyID:  "fam-1",
		UserAgent: strings.Repeat("x", 300),
	}
	if _, err := Encode(rec); err == nil {
		t.Fatal("expected error for oversized field")
	}
}

func TestRevocationHeaderLayout(t *testing.T) {
	header := revocationHeader(ReasonRotated, 1700000100)
	if len(header) != revocationHeaderLen {
		t.Fatalf("expected %d byte header, got %d", revocationHeaderLen, len(header))
	}
	if header[0] != 1 {
		t.Fatal("expected revoked flag set")
	}
	if Reason(header[1]) != ReasonRotated {
		t.Fatalf("expected rotated reason byte, got %d", header[1])
	}
	if got := int64(binary.BigEndian.Uint64(header[2:])); got != 1700000100 {
		t.Fatalf("expected revokedAt 1700000100, got %d", got)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	rec := &Record{ID: "rec-1", AccountID: "u1", FamilyID: "fam-1", CreatedAt: 1, ExpiresAt: 2}
	a, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	b, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("expected deterministic encoding")
	}
}
