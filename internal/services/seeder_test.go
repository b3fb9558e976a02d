package services

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/healthline/internal/domain"
)

func TestSplitDose(t *testing.T) {
	cases := map[string][2]string{
		"10mg":         {"10", "mg"},
		"12.5mg":       {"12.5", "mg"},
		"1 inhalación": {"1", "inhalación"},
		"18U":          {"18", "U"},
		"500":          {"500", ""},
		"a pinch":      {"", "a pinch"},
	}
	for in, want := range cases {
		v, u := SplitDose(in)
		if v != want[0] || u != want[1] {
			t.Errorf("SplitDose(%q) = %q, %q; want %q, %q", in, v, u, want[0], want[1])
		}
	}
}

func TestSeeder_SeedDemo(t *testing.T) {
	f := newFixture(t, baseNow)
	ctx := context.Background()
	f.patient(t, "Leftover")

	s := &Seeder{DB: f.db, Clock: f.clk}
	np, nm, err := s.SeedDemo(ctx)
	if err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	if np != 6 || nm != 17 {
		t.Fatalf("seeded %d patients / %d medications", np, nm)
	}

	ps, err := f.pats.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range ps {
		if p.Name == "Leftover" {
			t.Fatal("seeding must wipe existing patients")
		}
	}

	var paused []domain.Medication
	if err := f.db.Where("active = ?", false).Find(&paused).Error; err != nil {
		t.Fatal(err)
	}
	if len(paused) != 1 || paused[0].Name != "Naproxeno" {
		t.Fatalf("paused = %+v", paused)
	}

	var amox domain.Medication
	if err := f.db.Where("name = ?", "Amoxicilina").First(&amox).Error; err != nil {
		t.Fatal(err)
	}
	if amox.EndTime == nil || !amox.EndTime.Equal(baseNow.Add(24*time.Hour)) || amox.DoseValue != "500" || amox.DoseUnit != "mg" {
		t.Fatalf("unexpected amoxicilina: %+v", amox)
	}

	// Seeding twice yields the same data set.
	if np, nm, err = s.SeedDemo(ctx); err != nil || np != 6 || nm != 17 {
		t.Fatalf("reseed = %d, %d, %v", np, nm, err)
	}
}
