package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveGeneration(ctx context.Context, gen Generation) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeGeneration(gen)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO generations (number, run_id, species_count, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			run_id = excluded.run_id,
			species_count = excluded.species_count,
			payload = excluded.payload
	`, gen.Number, gen.RunID, len(gen.Species), payload)
	return err
}

func (s *SQLiteStore) GetGeneration(ctx context.Context, number int) (Generation, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Generation{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM generations WHERE number = ?`, number).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Generation{}, false, nil
		}
		return Generation{}, false, err
	}

	gen, err := DecodeGeneration(payload)
	if err != nil {
		return Generation{}, false, fmt.Errorf("decode generation %d: %w", number, err)
	}
	return gen, true, nil
}

func (s *SQLiteStore) Generations(ctx context.Context) ([]int, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT number FROM generations ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS generations (
			number INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL,
			species_count INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
