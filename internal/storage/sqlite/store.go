// ABOUTME: Unified store that wraps every SQLite table store
// ABOUTME: Satisfies all collaborator ports of the refinement service
package sqlite

import (
	"fmt"
)

// Store manages all persistent data of the refinery using SQLite
type Store struct {
	*ProjectStore
	*UnitStore
	*RefinementStore
	*LeaseStore

	db *DB
}

// NewStore opens the database at path and wires every table store
func NewStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStore(db), nil
}

// NewStoreInMemory creates an in-memory store (for testing)
func NewStoreInMemory() (*Store, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return newStore(db), nil
}

func newStore(db *DB) *Store {
	return &Store{
		ProjectStore:    NewProjectStore(db),
		UnitStore:       NewUnitStore(db),
		RefinementStore: NewRefinementStore(db),
		LeaseStore:      NewLeaseStore(db),
		db:              db,
	}
}

// DB returns the underlying database
func (s *Store) DB() *DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
