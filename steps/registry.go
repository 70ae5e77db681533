package steps

// StepInfo describes a simulation step for listings and perf tracking.
type StepInfo struct {
	ID          string // Internal identifier, matches Step.Name()
	Name        string // Display name
	Description string // What this step does
	Category    string // Grouping (e.g., "population", "speciation")
	Concurrent  bool   // Whether instances may run alongside each other
}

// Registry holds metadata about all steps.
// This centralizes step naming so the CLI and perf tracker stay in sync.
type Registry struct {
	steps []StepInfo
	byID  map[string]StepInfo
}

// NewRegistry creates a registry with all known steps.
func NewRegistry() *Registry {
	reg := &Registry{
		byID: make(map[string]StepInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds all known steps to the registry.
// Update this when adding new steps.
func (r *Registry) registerDefaults() {
	r.Register(StepInfo{ID: IDMichePopulation, Name: "Miche Population", Description: "Builds the niche tree of a patch and turns gathered energy into population", Category: "population", Concurrent: true})
	r.Register(StepInfo{ID: IDFindMigrations, Name: "Find Migrations", Description: "Proposes moves into adjacent patches that accept the species", Category: "migration"})
	r.Register(StepInfo{ID: IDModifySpecies, Name: "Modify Species", Description: "Tries mutants and records splits, new niches or mutations", Category: "speciation"})
	r.Register(StepInfo{ID: IDRemoveInvalidMigrations, Name: "Remove Invalid Migrations", Description: "Drops duplicate-target and split-patch migrations", Category: "migration"})
	r.Register(StepInfo{ID: IDKillLowPopulation, Name: "Kill Low Population", Description: "Removes species from patches below the viable population", Category: "population"})
}

// Register adds a step to the registry.
func (r *Registry) Register(info StepInfo) {
	r.steps = append(r.steps, info)
	r.byID[info.ID] = info
}

// Get returns step info by ID.
func (r *Registry) Get(id string) (StepInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// GetName returns the display name for a step ID.
// Falls back to the ID itself if not found.
func (r *Registry) GetName(id string) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return id
}

// All returns all registered steps.
func (r *Registry) All() []StepInfo {
	return r.steps
}

// ByCategory returns steps filtered by category.
func (r *Registry) ByCategory(category string) []StepInfo {
	var result []StepInfo
	for _, info := range r.steps {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}

// IDs returns all step IDs in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.steps))
	for i, info := range r.steps {
		ids[i] = info.ID
	}
	return ids
}
