package components

import "testing"

func TestPopulationEffective(t *testing.T) {
	p := Population{Simulation: 120}
	if got := p.Effective(); got != 120 {
		t.Errorf("Effective() = %d, want 120", got)
	}

	p.Gameplay = 80
	p.HasGameplay = true
	if got := p.Effective(); got != 80 {
		t.Errorf("Effective() with gameplay cache = %d, want 80", got)
	}

	p.ClearGameplay()
	if p.HasGameplay || p.Gameplay != 0 {
		t.Error("ClearGameplay should reset the cache")
	}
	if got := p.Effective(); got != 120 {
		t.Errorf("Effective() after clear = %d, want 120", got)
	}
}
