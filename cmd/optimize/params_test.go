package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/telemetry"
)

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-9 {
			t.Errorf("%s: %v -> %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}
}

func TestApplyAndExtract(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()

	values := pv.DefaultVector()
	values[0] = 100 // clamped to max
	pv.ApplyToConfig(cfg, values)

	got := pv.ExtractFromConfig(cfg)
	if len(got) != pv.Dim() {
		t.Fatalf("extracted %d values, want %d", len(got), pv.Dim())
	}
	if got[0] != pv.Specs[0].Max {
		t.Errorf("temperature strength = %v, want clamped %v", got[0], pv.Specs[0].Max)
	}
	for i := 1; i < len(got); i++ {
		if got[i] != values[i] {
			t.Errorf("%s = %v, want %v", pv.Specs[i].Name, got[i], values[i])
		}
	}
}

func TestDefaultsMatchConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	got := pv.ExtractFromConfig(cfg)
	for i, spec := range pv.Specs {
		if got[i] != spec.Default {
			t.Errorf("%s default %v, config has %v", spec.Name, spec.Default, got[i])
		}
	}
}

func TestComputeQuality(t *testing.T) {
	if q := computeQuality(nil); q != 0 {
		t.Errorf("empty quality = %v", q)
	}

	stable := make([]telemetry.GenerationStats, 10)
	for i := range stable {
		stable[i] = telemetry.GenerationStats{SpeciesCount: 10, TotalPopulation: 50000, NewSpecies: 1}
	}
	collapsing := make([]telemetry.GenerationStats, 10)
	for i := range collapsing {
		collapsing[i] = telemetry.GenerationStats{SpeciesCount: 1, TotalPopulation: int64(50000 / (i + 1))}
	}

	qs, qc := computeQuality(stable), computeQuality(collapsing)
	if qs <= qc {
		t.Errorf("stable quality %v should exceed collapsing %v", qs, qc)
	}
	if qs < 0 || qs > 1 {
		t.Errorf("quality out of range: %v", qs)
	}
}
