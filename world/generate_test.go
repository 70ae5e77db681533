package world

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/traits"
)

func TestGenerateDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	m, err := Generate(cfg, 7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	patches := m.Patches()
	if len(patches) != cfg.Derived.PatchCount {
		t.Fatalf("patch count = %d, want %d", len(patches), cfg.Derived.PatchCount)
	}
	for _, p := range patches {
		if p.Temperature < cfg.World.TemperatureMin || p.Temperature > cfg.World.TemperatureMax {
			t.Errorf("%s temperature %.1f out of range", p, p.Temperature)
		}
		if p.Sunlight < 0 || p.Sunlight > cfg.World.SunlightMax {
			t.Errorf("%s sunlight %.2f out of range", p, p.Sunlight)
		}
		for _, adj := range p.Adjacent {
			other, ok := m.Patch(adj)
			if !ok {
				t.Fatalf("%s adjacent to unknown patch %d", p, adj)
			}
			if !other.IsAdjacent(p.ID) {
				t.Errorf("adjacency not symmetric: %s -> %s", p, other)
			}
		}
	}

	species := m.AllSpecies()
	if len(species) != len(cfg.Species) {
		t.Fatalf("species count = %d, want %d", len(species), len(cfg.Species))
	}
	for _, sp := range species {
		want := int64(cfg.World.SeedPatches) * cfg.World.InitialPopulation
		if got := m.GlobalPopulation(sp.ID); got != want {
			t.Errorf("%s global population = %d, want %d", sp, got, want)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	cfg, _ := config.Load("")
	a, _ := Generate(cfg, 99)
	b, _ := Generate(cfg, 99)

	pa, pb := a.Patches(), b.Patches()
	for i := range pa {
		if pa[i].Temperature != pb[i].Temperature || pa[i].Biome != pb[i].Biome {
			t.Errorf("patch %d differs between runs with the same seed", i)
		}
	}
}

func TestGridNeighbours(t *testing.T) {
	tests := []struct {
		name     string
		col, row int
		want     int
	}{
		{"corner", 0, 0, 2},
		{"edge", 1, 0, 3},
		{"interior", 1, 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(gridNeighbours(tt.col, tt.row, 4, 3)); got != tt.want {
				t.Errorf("neighbours = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMutateKeepsIdentityAndBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sp := NewSpecies(5, "Primum thermophila", traits.Photosynthetic, Properties{
		BodySize: 1, OptimalTemperature: 20, TemperatureTolerance: 10, Speed: 0.5, Photosynthesis: 0.9,
	})

	for i := 0; i < 200; i++ {
		m := sp.Mutate(rng, 0.5)
		if m.ID != sp.ID || m.ParentID != sp.ID {
			t.Fatalf("mutant ids = (%d, %d)", m.ID, m.ParentID)
		}
		if !m.Traits.Has(traits.Photosynthetic) {
			t.Fatal("mutation removed energy source trait")
		}
		p := m.Properties
		if p.Speed < 0 || p.Speed > 1 || p.Photosynthesis < 0 || p.Photosynthesis > 1 {
			t.Fatalf("property out of range: %+v", p)
		}
		if p.BodySize < 0.1 || math.IsNaN(p.OptimalTemperature) {
			t.Fatalf("bad property: %+v", p)
		}
	}
	if sp.Properties.BodySize != 1 {
		t.Error("Mutate modified the original")
	}
}

func TestDescendantName(t *testing.T) {
	sp := NewSpecies(1, "Primum thermophila", 0, Properties{})
	if got := DescendantName(sp, 12); got != "Primum nova-12" {
		t.Errorf("DescendantName = %q", got)
	}
}

func TestIndividualCostArmor(t *testing.T) {
	sp := NewSpecies(1, "A", traits.Armored, Properties{BodySize: 2})
	if got := sp.IndividualCost(10, 1.5); got != 30 {
		t.Errorf("cost = %v, want 30", got)
	}
	sp.Traits = 0
	if got := sp.IndividualCost(10, 1.5); got != 20 {
		t.Errorf("cost = %v, want 20", got)
	}
}
