package history

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	generations map[int][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.generations = make(map[int][]byte)
	return nil
}

// SaveGeneration stores the encoded form so later reads never alias the caller's records.
func (s *MemoryStore) SaveGeneration(_ context.Context, gen Generation) error {
	payload, err := EncodeGeneration(gen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.generations[gen.Number] = payload
	return nil
}

func (s *MemoryStore) GetGeneration(_ context.Context, number int) (Generation, bool, error) {
	s.mu.RLock()
	payload, ok := s.generations[number]
	s.mu.RUnlock()
	if !ok {
		return Generation{}, false, nil
	}

	gen, err := DecodeGeneration(payload)
	if err != nil {
		return Generation{}, false, err
	}
	return gen, true, nil
}

func (s *MemoryStore) Generations(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.generations)), nil
}

func (s *MemoryStore) Close() error { return nil }
