package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/healthline/internal/domain"
)

func TestDoseEvents_CreateGetDuplicate(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	p := seedPatient(t, db, "Elena")
	m := seedMedication(t, db, p.ID, "Paracetamol", start, 6)

	at := start.Add(6 * time.Hour)
	ev := &domain.DoseEvent{MedicationID: m.ID, ScheduledAt: at.In(time.FixedZone("X", 3600))}
	if err := CreateDoseEvent(ctx, db, ev); err != nil {
		t.Fatalf("CreateDoseEvent: %v", err)
	}
	if ev.ScheduledUnix != at.Unix() || ev.ScheduledAt.Location() != time.UTC {
		t.Fatalf("expected normalized UTC key, got %+v", ev)
	}

	got, err := GetDoseEvent(ctx, db, m.ID, at)
	if err != nil || got.ID != ev.ID {
		t.Fatalf("GetDoseEvent: %v %+v", err, got)
	}
	if _, err := GetDoseEvent(ctx, db, m.ID, start); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := CreateDoseEvent(ctx, db, &domain.DoseEvent{MedicationID: m.ID, ScheduledAt: at}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpdateDoseEvent_WritesZeroValues(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	p := seedPatient(t, db, "Elena")
	m := seedMedication(t, db, p.ID, "Paracetamol", start, 6)

	taken := start.Add(time.Minute)
	ev := &domain.DoseEvent{MedicationID: m.ID, ScheduledAt: start, Taken: true, TakenAt: &taken}
	if err := CreateDoseEvent(ctx, db, ev); err != nil {
		t.Fatalf("CreateDoseEvent: %v", err)
	}
	if err := UpdateDoseEvent(ctx, db, ev.ID, map[string]any{"taken": false, "taken_at": nil, "note": "vomitó"}); err != nil {
		t.Fatalf("UpdateDoseEvent: %v", err)
	}
	got, _ := GetDoseEvent(ctx, db, m.ID, start)
	if got.Taken || got.TakenAt != nil || got.Note != "vomitó" {
		t.Fatalf("unexpected after update: %+v", got)
	}
	if err := UpdateDoseEvent(ctx, db, "missing", map[string]any{"note": ""}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetOrCreateDoseEvent_SingleRow(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	p := seedPatient(t, db, "Rosa")
	m := seedMedication(t, db, p.ID, "Pregabalina", start, 12)

	first, err := GetOrCreateDoseEvent(ctx, db, m.ID, start)
	if err != nil || first.Resolved() {
		t.Fatalf("GetOrCreateDoseEvent: %v %+v", err, first)
	}
	second, err := GetOrCreateDoseEvent(ctx, db, m.ID, start)
	if err != nil || second.ID != first.ID {
		t.Fatalf("expected same row, got %v %+v", err, second)
	}

	var n int64
	db.Model(&domain.DoseEvent{}).Where("medication_id = ?", m.ID).Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly one row, got %d", n)
	}
}

func TestListDoseEvents_RecentAndBetween(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := seedPatient(t, db, "Luis")
	a := seedMedication(t, db, p.ID, "Carvedilol", start, 12)
	b := seedMedication(t, db, p.ID, "Furosemida", start, 24)

	for k := 0; k < 4; k++ {
		if err := CreateDoseEvent(ctx, db, &domain.DoseEvent{MedicationID: a.ID, ScheduledAt: start.Add(time.Duration(12*k) * time.Hour)}); err != nil {
			t.Fatalf("seed a: %v", err)
		}
	}
	if err := CreateDoseEvent(ctx, db, &domain.DoseEvent{MedicationID: b.ID, ScheduledAt: start}); err != nil {
		t.Fatalf("seed b: %v", err)
	}

	recent, err := ListRecentDoseEvents(ctx, db, a.ID, 2)
	if err != nil || len(recent) != 2 || recent[0].ScheduledUnix != start.Add(36*time.Hour).Unix() {
		t.Fatalf("ListRecentDoseEvents: %v %+v", err, recent)
	}

	between, err := ListDoseEventsBetween(ctx, db, []string{a.ID, b.ID}, start, start.Add(24*time.Hour))
	if err != nil || len(between) != 3 {
		t.Fatalf("ListDoseEventsBetween: %v len=%d", err, len(between))
	}
	idx := IndexDoseEvents(between)
	if idx[DoseKey{MedicationID: b.ID, Unix: start.Unix()}] == nil {
		t.Fatalf("expected b's dose in index")
	}
	if idx[DoseKey{MedicationID: a.ID, Unix: start.Add(24 * time.Hour).Unix()}] != nil {
		t.Fatalf("upper bound must be exclusive")
	}

	none, err := ListDoseEventsBetween(ctx, db, nil, start, start.Add(time.Hour))
	if err != nil || none != nil {
		t.Fatalf("expected nil for no medications, got %v %v", none, err)
	}
}
