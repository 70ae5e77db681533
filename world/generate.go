package world

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/autoevo/config"
)

// Generate builds a patch grid from layered noise and seeds the configured
// founder species. A zero seed picks a random one.
func Generate(cfg *config.Config, seed int64) (*Map, error) {
	if seed == 0 {
		seed = rand.Int63()
	}
	wc := cfg.World

	tempNoise := opensimplex.NewNormalized(seed)
	lightNoise := opensimplex.NewNormalized(seed + 1)
	chemNoise := opensimplex.NewNormalized(seed + 2)

	m := NewMap()

	for row := 0; row < wc.Rows; row++ {
		// Deeper rows get less light and more chemicals
		depth := 0.0
		if wc.Rows > 1 {
			depth = float64(row) / float64(wc.Rows-1)
		}
		for col := 0; col < wc.Columns; col++ {
			x, y := float64(col), float64(row)

			t := octaveNoise(tempNoise, x, y, wc.Octaves, wc.NoiseScale, wc.Lacunarity, wc.Gain)
			l := octaveNoise(lightNoise, x, y, wc.Octaves, wc.NoiseScale, wc.Lacunarity, wc.Gain)
			c := octaveNoise(chemNoise, x, y, wc.Octaves, wc.NoiseScale, wc.Lacunarity, wc.Gain)

			sunlight := clamp01(0.3*l+0.7*(1-depth)) * wc.SunlightMax
			chemicals := clamp01(0.4*c+0.6*depth) * wc.ChemicalsMax
			biome := ClassifyBiome(sunlight, chemicals)

			p := &Patch{
				ID:          PatchID(row*wc.Columns + col),
				Name:        fmt.Sprintf("%s %d-%d", biome, col, row),
				Biome:       biome,
				Temperature: wc.TemperatureMin + t*(wc.TemperatureMax-wc.TemperatureMin),
				Sunlight:    sunlight,
				Chemicals:   chemicals,
				X:           col,
				Y:           row,
			}
			p.Adjacent = gridNeighbours(col, row, wc.Columns, wc.Rows)
			if err := m.AddPatch(p); err != nil {
				return nil, err
			}
		}
	}

	if err := SeedFounders(m, cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// SeedFounders registers each configured species and places it in the
// patches whose temperature best matches its optimum.
func SeedFounders(m *Map, cfg *config.Config) error {
	patches := m.Patches()
	if len(patches) == 0 {
		return fmt.Errorf("world: no patches to seed")
	}

	for i, sc := range cfg.Species {
		sp := NewSpecies(m.NewSpeciesID(), sc.Name, cfg.Derived.SpeciesTraits[i], Properties{
			BodySize:             sc.BodySize,
			OptimalTemperature:   sc.OptimalTemperature,
			TemperatureTolerance: sc.TemperatureTolerance,
			Speed:                sc.Speed,
			Aggression:           sc.Aggression,
			Photosynthesis:       sc.Photosynthesis,
			Chemosynthesis:       sc.Chemosynthesis,
		})
		m.RegisterSpecies(sp)

		ranked := slices.Clone(patches)
		slices.SortStableFunc(ranked, func(a, b *Patch) int {
			da := math.Abs(a.Temperature - sc.OptimalTemperature)
			db := math.Abs(b.Temperature - sc.OptimalTemperature)
			switch {
			case da < db:
				return -1
			case da > db:
				return 1
			}
			return int(a.ID) - int(b.ID)
		})

		n := min(max(cfg.World.SeedPatches, 1), len(ranked))
		for _, p := range ranked[:n] {
			m.AddSpeciesToPatch(p.ID, sp.ID, cfg.World.InitialPopulation)
		}
	}
	return nil
}

// octaveNoise layers noise at increasing frequencies. Returns a value in [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, lacunarity, gain float64) float64 {
	if octaves <= 0 {
		octaves = 1
	}
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= gain
		frequency *= lacunarity
	}

	return total / maxVal
}

func gridNeighbours(col, row, cols, rows int) []PatchID {
	var out []PatchID
	for _, d := range [4][2]int{{0, -1}, {-1, 0}, {1, 0}, {0, 1}} {
		c, r := col+d[0], row+d[1]
		if c < 0 || r < 0 || c >= cols || r >= rows {
			continue
		}
		out = append(out, PatchID(r*cols+c))
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
