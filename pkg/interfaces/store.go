package interfaces

import "context"

// MetricsStore key-value store holding per-resource hashes and partition sets.
// Every operation must be atomic at the field level under concurrent callers.
// Implementations wrap I/O failures with model.ErrStoreUnavailable.
type MetricsStore interface {
	// HashGetAll returns all fields of a hash, empty map if the key does not exist
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// HashGetAllBatch fetches several hashes in one round trip.
	// Per-key failures are reported in the matching HashResult, not as the returned error.
	HashGetAllBatch(ctx context.Context, keys []string) ([]HashResult, error)

	// HashSet sets the given fields, leaving other fields untouched
	HashSet(ctx context.Context, key string, fields map[string]string) error

	// HashIncr increments an integer field and returns the new value
	HashIncr(ctx context.Context, key, field string, delta int64) (int64, error)

	// HashIncrOnDay increments field, first resetting it to zero when stampField differs from day.
	// stampField is set to day. Returns the new value.
	HashIncrOnDay(ctx context.Context, key, field, stampField, day string, delta int64) (int64, error)

	// HashDecrOnDay decrements field only while stampField equals day, never below zero.
	// Returns the resulting value, which is unchanged when the day differs.
	HashDecrOnDay(ctx context.Context, key, field, stampField, day string, delta int64) (int64, error)

	// HashBlend folds sample into a float field: new = old*(1-weight) + sample*weight
	HashBlend(ctx context.Context, key, field string, sample, weight float64) (float64, error)

	// Delete removes whole keys
	Delete(ctx context.Context, keys ...string) error

	// SetAdd adds members to a set and returns how many were not already present
	SetAdd(ctx context.Context, key string, members ...string) (int64, error)

	// SetRemove removes members from a set
	SetRemove(ctx context.Context, key string, members ...string) error

	// SetMembers lists set members, unordered
	SetMembers(ctx context.Context, key string) ([]string, error)

	// SetCount returns set cardinality
	SetCount(ctx context.Context, key string) (int64, error)

	// SetIsMember reports membership
	SetIsMember(ctx context.Context, key, member string) (bool, error)

	// SetMove atomically removes member from every set in from and adds it to to
	SetMove(ctx context.Context, member string, from []string, to string) error
}

// HashResult result for one key of HashGetAllBatch
type HashResult struct {
	Key    string
	Fields map[string]string
	Err    error
}
