// Package components defines ECS components for the world map.
package components

// Membership links a species to a patch. One entity exists per (patch, species) pair.
type Membership struct {
	Patch   uint32
	Species uint32
}

// Population holds the population of one species in one patch.
type Population struct {
	// Simulation is the committed auto-evo population.
	Simulation int64

	// Gameplay is a transient per-run cache of the population seen by the
	// player. Valid only while HasGameplay is set.
	Gameplay    int64
	HasGameplay bool
}

// ClearGameplay drops the transient gameplay cache.
func (p *Population) ClearGameplay() {
	p.Gameplay = 0
	p.HasGameplay = false
}

// Effective returns the gameplay population if cached, else the simulation population.
func (p *Population) Effective() int64 {
	if p.HasGameplay {
		return p.Gameplay
	}
	return p.Simulation
}
