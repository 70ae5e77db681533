package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/world"
)

func sampleGeneration(n int, pop int64) Generation {
	return Generation{
		Number: n,
		RunID:  "run-test",
		Species: []ledger.SpeciesRecord{
			{
				SpeciesID:        1,
				Name:             "Primum",
				Species:          &world.Species{ID: 1, Name: "Primum"},
				NewPopulation:    map[world.PatchID]int64{0: pop},
				Resolved:         map[world.PatchID]int64{0: pop},
				GlobalPopulation: pop,
			},
		},
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "history.db")),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Init(ctx); err != nil {
				t.Fatalf("init: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })

			if _, ok, err := store.GetGeneration(ctx, 1); err != nil || ok {
				t.Fatalf("expected missing generation, ok=%v err=%v", ok, err)
			}

			for i, pop := range []int64{100, 80, 120} {
				if err := store.SaveGeneration(ctx, sampleGeneration(i+1, pop)); err != nil {
					t.Fatalf("save %d: %v", i+1, err)
				}
			}
			// Overwrite keeps a single row per generation
			if err := store.SaveGeneration(ctx, sampleGeneration(2, 90)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}

			numbers, err := store.Generations(ctx)
			if err != nil {
				t.Fatalf("generations: %v", err)
			}
			if len(numbers) != 3 || numbers[0] != 1 || numbers[2] != 3 {
				t.Fatalf("generations = %v, want [1 2 3]", numbers)
			}

			gen, ok, err := store.GetGeneration(ctx, 2)
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if gen.SchemaVersion != CurrentSchemaVersion {
				t.Errorf("schema version = %d", gen.SchemaVersion)
			}
			if gen.RunID != "run-test" || len(gen.Species) != 1 {
				t.Fatalf("unexpected generation %+v", gen)
			}
			if got := gen.Species[0].Resolved[0]; got != 90 {
				t.Errorf("resolved = %d, want 90", got)
			}

			points, err := SpeciesHistory(ctx, store, 1)
			if err != nil {
				t.Fatalf("species history: %v", err)
			}
			want := []int64{100, 90, 120}
			if len(points) != len(want) {
				t.Fatalf("points = %v", points)
			}
			for i, p := range points {
				if p.Population != want[i] || p.Generation != i+1 {
					t.Errorf("point %d = %+v, want pop %d", i, p, want[i])
				}
			}
		})
	}
}

func TestSQLiteRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err := store.SaveGeneration(context.Background(), sampleGeneration(1, 10)); err == nil {
		t.Fatal("expected error before init")
	}
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.SaveGeneration(ctx, sampleGeneration(7, 42)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	gen, ok, err := second.GetGeneration(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if gen.Species[0].GlobalPopulation != 42 {
		t.Errorf("global population = %d", gen.Species[0].GlobalPopulation)
	}
}

func TestDecodeVersionMismatch(t *testing.T) {
	_, err := DecodeGeneration([]byte(`{"schema_version":99,"generation":1}`))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{"", false},
		{"memory", false},
		{"sqlite", false},
		{"postgres", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			store, err := NewStore(tt.kind, "x.db")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && store == nil {
				t.Fatal("nil store")
			}
		})
	}
}
