package deviceflow

import "context"

// Store holds in-flight device authorizations indexed by device code and user code.
// Implementations return copies from the getters and treat expired states as absent.
type Store interface {
	// Add inserts state under both codes, or returns ErrCodeCollision if either is live
	Add(ctx context.Context, state *State) error

	// Remove deletes state from both indices. It is idempotent and reports
	// whether this call was the one that removed it.
	Remove(ctx context.Context, state *State) (bool, error)

	// GetByDeviceCode returns the live state for a device code, or nil
	GetByDeviceCode(ctx context.Context, deviceCode string) (*State, error)

	// GetByUserCode returns the live state for a user code, or nil
	GetByUserCode(ctx context.Context, userCode string) (*State, error)

	// Resolve records the outcome for a user code exactly once
	Resolve(ctx context.Context, userCode string, res *Resolution) error

	// CheckHealth verifies the storage backend is healthy
	CheckHealth(ctx context.Context) error

	// Close stops background work owned by the store
	Close() error
}
