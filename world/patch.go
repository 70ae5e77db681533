package world

import (
	"fmt"
	"slices"
)

// PatchID is a stable patch identifier.
type PatchID uint32

// Biome classifies a patch by its dominant condition.
type Biome string

const (
	BiomeSurface  Biome = "surface"
	BiomeVents    Biome = "vents"
	BiomeTidepool Biome = "tidepool"
	BiomeAbyss    Biome = "abyss"
)

// Patch is one region of the world map.
type Patch struct {
	ID          PatchID
	Name        string
	Biome       Biome
	Temperature float64 // C
	Sunlight    float64 // 0..1
	Chemicals   float64 // 0..1
	Adjacent    []PatchID
	X, Y        int // Grid coordinates
}

// IsAdjacent reports whether other is a neighbour of this patch.
func (p *Patch) IsAdjacent(other PatchID) bool {
	return slices.Contains(p.Adjacent, other)
}

// String formats the patch as "Name (#id)".
func (p *Patch) String() string {
	if p == nil {
		return "<nil patch>"
	}
	return fmt.Sprintf("%s (#%d)", p.Name, p.ID)
}

// ClassifyBiome picks a biome from patch conditions.
func ClassifyBiome(sunlight, chemicals float64) Biome {
	switch {
	case chemicals > 0.6 && chemicals > sunlight:
		return BiomeVents
	case sunlight > 0.6:
		return BiomeSurface
	case sunlight > 0.3:
		return BiomeTidepool
	default:
		return BiomeAbyss
	}
}
