package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/ledger"
)

// SpeciesRow is one species in one generation, as written to species.csv.
type SpeciesRow struct {
	Generation   int    `csv:"generation"`
	SpeciesID    uint32 `csv:"species_id"`
	Name         string `csv:"name"`
	ParentID     uint32 `csv:"parent_id"`
	Population   int64  `csv:"population"`
	Patches      int    `csv:"patches"`
	NewlyCreated string `csv:"newly_created"`
	Migrations   int    `csv:"migrations"`
	Extinct      bool   `csv:"extinct"`
}

// SpeciesRows flattens a ledger snapshot into CSV rows.
func SpeciesRows(generation int, records []ledger.SpeciesRecord) []SpeciesRow {
	rows := make([]SpeciesRow, 0, len(records))
	for _, rec := range records {
		row := SpeciesRow{
			Generation:   generation,
			SpeciesID:    uint32(rec.SpeciesID),
			Name:         rec.Name,
			Population:   rec.GlobalPopulation,
			NewlyCreated: rec.NewlyCreated.String(),
			Migrations:   len(rec.Migrations),
			Extinct:      rec.Extinct(),
		}
		if rec.SplitFrom != 0 {
			row.ParentID = uint32(rec.SplitFrom)
		} else if rec.Species != nil {
			row.ParentID = uint32(rec.Species.ParentID)
		}
		for _, pop := range rec.Resolved {
			if pop > 0 {
				row.Patches++
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// csvFile appends records to one CSV file, writing the header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func (c *csvFile) write(records any) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir string

	generations *csvFile
	species     *csvFile
	perf        *csvFile
	events      *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		name string
		dst  **csvFile
	}{
		{"generations.csv", &om.generations},
		{"species.csv", &om.species},
		{"perf.csv", &om.perf},
		{"events.csv", &om.events},
	}
	for _, file := range files {
		f, err := os.Create(filepath.Join(dir, file.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", file.name, err)
		}
		*file.dst = &csvFile{f: f}
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteGeneration writes a generation stats record to generations.csv.
func (om *OutputManager) WriteGeneration(stats GenerationStats) error {
	if om == nil {
		return nil
	}
	if err := om.generations.write([]GenerationStats{stats}); err != nil {
		return fmt.Errorf("writing generation: %w", err)
	}
	return nil
}

// WriteSpecies writes one row per species to species.csv.
func (om *OutputManager) WriteSpecies(rows []SpeciesRow) error {
	if om == nil || len(rows) == 0 {
		return nil
	}
	if err := om.species.write(rows); err != nil {
		return fmt.Errorf("writing species: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, generation int) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(generation)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteEvent writes an event record to events.csv.
func (om *OutputManager) WriteEvent(e Event) error {
	if om == nil {
		return nil
	}
	if err := om.events.write([]Event{e}); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// WriteSnapshot saves a niche tree snapshot under miches/.
func (om *OutputManager) WriteSnapshot(s *Snapshot) (string, error) {
	if om == nil || s == nil {
		return "", nil
	}
	return SaveSnapshot(s, filepath.Join(om.dir, "miches"))
}

// WriteLifetimes saves the species lifetimes as JSON.
func (om *OutputManager) WriteLifetimes(lt *LifetimeTracker) error {
	if om == nil || lt == nil {
		return nil
	}

	data, err := json.MarshalIndent(lt.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling lifetimes: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "lifetimes.json"), data, 0644); err != nil {
		return fmt.Errorf("writing lifetimes.json: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, c := range []*csvFile{om.generations, om.species, om.perf, om.events} {
		if c == nil || c.f == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
