package ledger

import "math"

// EnergyContribution is the energy a species gathered from one pressure.
type EnergyContribution struct {
	Source  string  `json:"source"`
	Fitness float64 `json:"fitness"`
	Energy  float64 `json:"energy"`
}

// PatchEnergy collects the energy diagnostics of one species in one patch.
type PatchEnergy struct {
	TotalEnergy    float64              `json:"total_energy"`
	IndividualCost float64              `json:"individual_cost"`
	Contributions  []EnergyContribution `json:"contributions,omitempty"`
}

// UnadjustedPopulation is the population the gathered energy could feed:
// floor(total energy / individual cost). Zero without a positive cost.
func (e PatchEnergy) UnadjustedPopulation() int64 {
	if e.IndividualCost <= 0 || e.TotalEnergy <= 0 {
		return 0
	}
	return int64(math.Floor(e.TotalEnergy / e.IndividualCost))
}

func (e *PatchEnergy) clone() *PatchEnergy {
	c := *e
	c.Contributions = append([]EnergyContribution(nil), e.Contributions...)
	return &c
}
