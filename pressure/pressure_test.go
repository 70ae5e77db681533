package pressure

import (
	"math"
	"testing"

	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/miche"
	"github.com/pthm-cable/autoevo/simcache"
	"github.com/pthm-cable/autoevo/traits"
	"github.com/pthm-cable/autoevo/world"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func testPatch() *world.Patch {
	return &world.Patch{ID: 1, Name: "shallows", Temperature: 20, Sunlight: 0.8, Chemicals: 0.2}
}

func TestTemperatureScore(t *testing.T) {
	patch := testPatch()
	tp := NewTemperature(patch, 1)

	tests := []struct {
		name   string
		opt    float64
		tol    float64
		traits traits.Trait
		want   float64
	}{
		{"optimum", 20, 10, 0, 1},
		{"half tolerance", 25, 10, 0, 0.5},
		{"outside tolerance", 35, 10, 0, 0},
		{"cold adapted below optimum", 35, 10, traits.ColdAdapted, 0},
		{"cold adapted helps when patch is colder", 30, 10, traits.ColdAdapted, 1 - 10.0/15},
		{"heat adapted helps when patch is warmer", 10, 10, traits.HeatAdapted, 1 - 10.0/15},
		{"zero tolerance", 20, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := world.NewSpecies(1, "s", tt.traits, world.Properties{OptimalTemperature: tt.opt, TemperatureTolerance: tt.tol})
			if got := tp.Score(sp, nil); !approx(got, tt.want) {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnergySourceScores(t *testing.T) {
	patch := testPatch()
	plant := world.NewSpecies(1, "plant", traits.Photosynthetic, world.Properties{Photosynthesis: 0.5})
	vent := world.NewSpecies(2, "vent", traits.Chemosynthetic, world.Properties{Chemosynthesis: 1})
	hunter := world.NewSpecies(3, "hunter", traits.Predator|traits.Motile, world.Properties{Aggression: 1, Speed: 1})

	sun := NewSunlight(patch, 1, 100)
	chem := NewChemicals(patch, 1, 100)
	pred := NewPredation(patch, 1, 100)

	if got := sun.Score(plant, nil); !approx(got, 0.4) {
		t.Errorf("sunlight(plant) = %v", got)
	}
	if got := sun.Score(vent, nil); got != 0 {
		t.Errorf("sunlight(vent) = %v, want 0", got)
	}
	if got := chem.Score(vent, nil); !approx(got, 0.2) {
		t.Errorf("chemicals(vent) = %v", got)
	}
	if got := pred.Score(hunter, nil); !approx(got, 1.2) {
		t.Errorf("predation(hunter) = %v", got)
	}
	if got := pred.Score(plant, nil); got != 0 {
		t.Errorf("predation(plant) = %v, want 0", got)
	}

	if got := sun.Energy(patch); !approx(got, 80) {
		t.Errorf("sunlight energy = %v", got)
	}
	if got := pred.Energy(patch); !approx(got, 50) {
		t.Errorf("predation energy = %v", got)
	}
}

func TestWeightedComparedScores(t *testing.T) {
	tp := NewTemperature(testPatch(), 2)
	if got := tp.WeightedComparedScores(0.75, 0.25); got != 1 {
		t.Errorf("weighted = %v, want 1", got)
	}
	if got := NewRoot(testPatch()).WeightedComparedScores(5, 1); got != 0 {
		t.Errorf("root weighted = %v, want 0", got)
	}
}

func TestScoresAreMemoized(t *testing.T) {
	cache, _ := simcache.New(16)
	sun := NewSunlight(testPatch(), 1, 100)
	plant := world.NewSpecies(1, "plant", traits.Photosynthetic, world.Properties{Photosynthesis: 0.5})

	sun.Score(plant, cache)
	sun.Score(plant, cache)
	if s := cache.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("cache stats = %+v", s)
	}
}

func TestBuildTree(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	patch := testPatch()
	tree := BuildTree(patch, cfg)

	if tree.Len() != 5 {
		t.Fatalf("tree nodes = %d, want 5", tree.Len())
	}
	leaves := tree.LeafNodes()
	if len(leaves) != 3 {
		t.Fatalf("leaves = %d, want 3", len(leaves))
	}
	for _, leaf := range leaves {
		chain := tree.BackTraversal(leaf)
		if len(chain) != 3 || tree.Pressure(chain[1]).Name() != "Temperature" {
			t.Errorf("leaf %d path = %v", leaf, chain)
		}
	}

	plant := world.NewSpecies(1, "plant", traits.Photosynthetic, world.Properties{
		OptimalTemperature: 20, TemperatureTolerance: 10, Photosynthesis: 0.9,
	})
	if !tree.InsertSpecies(plant, nil, false) {
		t.Fatal("plant should find a niche")
	}
	occupied := tree.LeavesOccupiedBy(plant.ID)
	if len(occupied) != 1 || tree.Pressure(occupied[0]).Name() != "Sunlight" {
		t.Errorf("plant occupies %v", occupied)
	}

	var _ miche.Pressure = NewRoot(patch)
}
