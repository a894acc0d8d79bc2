package mysql

import "context"

// Repository aggregates all MySQL repositories
type Repository struct {
	ds *Datastore

	ResourceEvent *ResourceEventRepository
}

// NewRepository opens dsn and migrates the event log schema
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	ds, err := NewDatastore(dsn)
	if err != nil {
		return nil, err
	}
	if err := ds.Migrate(ctx); err != nil {
		ds.Close()
		return nil, err
	}
	return newRepository(ds), nil
}

func newRepository(ds *Datastore) *Repository {
	return &Repository{
		ds:            ds,
		ResourceEvent: NewResourceEventRepository(ds),
	}
}

// GetDatastore returns the underlying datastore for transaction support
func (r *Repository) GetDatastore() *Datastore {
	return r.ds
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.ds.Close()
}
