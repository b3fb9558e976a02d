// Package services – AdherenceService
//
// Adherence is computed, never stored: the schedules of a patient's active
// medications are expanded over a trailing window and joined with the dose
// log. Due doses (at or before now) are taken, skipped or overdue; doses in
// the next day are pending.
package services

import (
	"context"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/repo"
)

// Adherence summarizes a patient's recent dosing.
type Adherence struct {
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Age         *int      `json:"age,omitempty"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Taken       int       `json:"taken"`
	Skipped     int       `json:"skipped"`
	Overdue     int       `json:"overdue"`
	Pending     int       `json:"pending"`
	// Percent is taken / (taken + skipped + overdue), one decimal; nil
	// when no dose was due in the window.
	Percent     *float64 `json:"percent"`
	FallsLast90 int64    `json:"falls_last_90_days"`
}

// AdherenceService computes adherence summaries.
type AdherenceService struct {
	DB    *gorm.DB
	Clock clock.Clock

	// Window is the trailing period considered; zero means 7 days.
	Window time.Duration
}

const pendingHorizon = 24 * time.Hour

// ForPatient returns the summary of one patient.
func (s *AdherenceService) ForPatient(ctx context.Context, patientID string) (*Adherence, error) {
	p, err := repo.GetPatient(ctx, s.DB, patientID)
	if err != nil {
		return nil, errPatient(err)
	}
	return s.summarize(ctx, p, s.Clock.Now())
}

// Dashboard returns every patient's summary, most overdue first, then by
// ascending adherence (patients with nothing due last), then by name.
func (s *AdherenceService) Dashboard(ctx context.Context) ([]Adherence, error) {
	patients, err := repo.ListPatients(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	out := make([]Adherence, 0, len(patients))
	for i := range patients {
		a, err := s.summarize(ctx, &patients[i], now)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Overdue != out[b].Overdue {
			return out[a].Overdue > out[b].Overdue
		}
		pa, pb := percentKey(out[a].Percent), percentKey(out[b].Percent)
		if pa != pb {
			return pa < pb
		}
		return out[a].PatientName < out[b].PatientName
	})
	return out, nil
}

func (s *AdherenceService) summarize(ctx context.Context, p *domain.Patient, now time.Time) (*Adherence, error) {
	window := s.Window
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	from := now.Add(-window)
	a := &Adherence{PatientID: p.ID, PatientName: p.Name, Age: p.Age(now), From: from.UTC(), To: now.UTC()}

	meds, err := repo.ListMedicationsForPatient(ctx, s.DB, p.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(meds))
	for _, m := range meds {
		if m.Active {
			ids = append(ids, m.ID)
		}
	}
	evs, err := repo.ListDoseEventsBetween(ctx, s.DB, ids, from, now.Add(pendingHorizon+time.Second))
	if err != nil {
		return nil, err
	}
	idx := repo.IndexDoseEvents(evs)

	for i := range meds {
		m := &meds[i]
		if !m.Active {
			continue
		}
		sch, err := ScheduleOf(m)
		if err != nil {
			continue
		}
		for _, d := range sch.Between(from, now.Add(pendingHorizon)) {
			ev := idx[repo.DoseKey{MedicationID: m.ID, Unix: d.At.Unix()}]
			switch domain.DoseStatus(ev, d.At, now) {
			case domain.StatusTaken:
				if !d.At.After(now) {
					a.Taken++
				}
			case domain.StatusSkipped:
				if !d.At.After(now) {
					a.Skipped++
				}
			case domain.StatusOverdue:
				a.Overdue++
			case domain.StatusUpcoming:
				a.Pending++
			}
		}
	}
	if due := a.Taken + a.Skipped + a.Overdue; due > 0 {
		pct := math.Round(float64(a.Taken)*1000/float64(due)) / 10
		a.Percent = &pct
	}

	falls, err := repo.CountFallsSince(ctx, s.DB, p.ID, now.AddDate(0, 0, -90))
	if err != nil {
		return nil, err
	}
	a.FallsLast90 = falls
	return a, nil
}

func percentKey(p *float64) float64 {
	if p == nil {
		return math.Inf(1)
	}
	return *p
}
