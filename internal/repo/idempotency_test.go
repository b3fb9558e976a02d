package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/healthline/internal/domain"
)

func TestGetIdempotency_NoScope_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	rec, err := GetIdempotency(context.Background(), db, "NURSE", "   ", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for empty scope, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:         "expired",
		Actor:      "NURSE",
		Scope:      "patients",
		Key:        "k1",
		ResourceID: "p1",
		Status:     201,
		CreatedAt:  now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "NURSE", "patients", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}

	rec2, err2 := GetIdempotency(context.Background(), db, "NURSE", "patients", "missing", now)
	if rec2 != nil || err2 != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec2, err2)
	}
}

func TestCreateIdempotency_SuccessGetAndDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ttl := 90 * time.Minute

	rec, err := CreateIdempotency(ctx, db, "NURSE", "patients", "k9", "p9", 201, now, ttl)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec.ID == "" || rec.ResourceID != "p9" || rec.Status != 201 || !rec.ExpiresAt.Equal(now.Add(ttl)) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "NURSE", "patients", "k9", now.Add(time.Minute))
	if err != nil || got.ResourceID != "p9" {
		t.Fatalf("GetIdempotency: rec=%+v err=%v", got, err)
	}

	// Same key under another actor or scope is independent.
	if _, err := CreateIdempotency(ctx, db, "CARE_ADMIN", "patients", "k9", "p10", 201, now, ttl); err != nil {
		t.Fatalf("other actor should not collide: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "NURSE", "medications", "k9", "m1", 201, now, ttl); err != nil {
		t.Fatalf("other scope should not collide: %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "NURSE", "patients", "k9", "pX", 201, now, ttl); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

// Generic DB error path: attempt insert without migrating the table.
func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	_, err := CreateIdempotency(context.Background(), db, "NURSE", "patients", "kX", "pX", 201, time.Now(), time.Minute)
	if err == nil {
		t.Fatalf("expected error when table is missing")
	}
	if err == ErrDuplicate {
		t.Fatalf("expected non-duplicate error, got ErrDuplicate")
	}
}

func TestCreateIdempotency_ReplacesExpiredAndPurge(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	if _, err := CreateIdempotency(ctx, db, "NURSE", "patients", "k1", "p1", 201, now, time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "NURSE", "patients", "k2", "p2", 201, now, time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}

	later := now.Add(2 * time.Hour)
	rec, err := CreateIdempotency(ctx, db, "NURSE", "patients", "k1", "p3", 201, later, time.Hour)
	if err != nil || rec.ResourceID != "p3" {
		t.Fatalf("expired key should be reusable: %+v %v", rec, err)
	}

	n, err := DeleteExpiredIdempotency(ctx, db, later)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredIdempotency = %d, %v; want 1", n, err)
	}
	var left int64
	db.Model(&domain.Idempotency{}).Count(&left)
	if left != 1 {
		t.Fatalf("expected only the live record to remain, got %d", left)
	}
}
