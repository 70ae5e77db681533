package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/autoevo/miche"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version:    SnapshotVersion,
		Seed:       42,
		Generation: 12,
		RunID:      "run-12",
		Miches: []miche.Snapshot{
			{
				Patch: 3,
				Nodes: []miche.SnapshotNode{
					{ID: 0, Parent: miche.NoNode, Pressure: "root", Children: []miche.NodeID{1}},
					{ID: 1, Parent: 0, Pressure: "sunlight", Occupant: 7, OccupantName: "Primum"},
				},
			},
		},
		Event: &Event{Type: EventStableEcosystem, Generation: 12, Description: "test"},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if !strings.HasSuffix(path, "miches_12_stable_ecosystem.json") {
		t.Errorf("unexpected path %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.Generation != 12 || loaded.RunID != "run-12" || loaded.Seed != 42 {
		t.Errorf("header mismatch: %+v", loaded)
	}
	if len(loaded.Miches) != 1 || len(loaded.Miches[0].Nodes) != 2 {
		t.Fatalf("miches mismatch: %+v", loaded.Miches)
	}
	if got := loaded.Miches[0].Nodes[1]; got.Occupant != 7 || got.Pressure != "sunlight" {
		t.Errorf("node mismatch: %+v", got)
	}
	if loaded.Event == nil || loaded.Event.Type != EventStableEcosystem {
		t.Errorf("event mismatch: %+v", loaded.Event)
	}
}

func TestLoadSnapshotVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	data, _ := json.Marshal(Snapshot{Version: SnapshotVersion + 1})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Fatal("expected version error")
	}
}
