// ABOUTME: Single-flight lease rows keyed by unit id
// ABOUTME: A lease is taken atomically when free or expired, renewed and released by its holder
package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// LeaseStore handles refinement leases
type LeaseStore struct {
	db *DB
	// now is swappable in tests
	now func() time.Time
}

// NewLeaseStore creates a new LeaseStore
func NewLeaseStore(db *DB) *LeaseStore {
	return &LeaseStore{db: db, now: time.Now}
}

// AcquireLease takes the unit's lease for holder until now+ttl.
// It reports false when another holder's lease has not yet expired.
func (s *LeaseStore) AcquireLease(ctx context.Context, unitID, holder string, ttl time.Duration) (bool, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO refinement_leases (unit_id, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(unit_id) DO UPDATE SET
			holder = excluded.holder,
			expires_at = excluded.expires_at
		WHERE refinement_leases.expires_at < ? OR refinement_leases.holder = excluded.holder
	`, unitID, holder, now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RenewLease pushes holder's lease out to now+ttl.
// It reports false when the lease is gone or another holder has taken it.
func (s *LeaseStore) RenewLease(ctx context.Context, unitID, holder string, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refinement_leases SET expires_at = ? WHERE unit_id = ? AND holder = ?`,
		s.now().UTC().Add(ttl).UnixNano(), unitID, holder)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseLease drops the lease if holder still owns it
func (s *LeaseStore) ReleaseLease(ctx context.Context, unitID, holder string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refinement_leases WHERE unit_id = ? AND holder = ?`, unitID, holder)
	return err
}

// LeaseActive reports whether an unexpired lease exists for the unit
func (s *LeaseStore) LeaseActive(ctx context.Context, unitID string) (bool, error) {
	var expires int64
	err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM refinement_leases WHERE unit_id = ?`, unitID).Scan(&expires)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expires >= s.now().UTC().UnixNano(), nil
}
