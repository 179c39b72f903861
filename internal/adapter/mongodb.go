package adapter

import "context"

// mongoStubAdapter registers the mongodb scheme without a working driver.
// No MongoDB client library appears anywhere in this worker's dependency
// set, and fabricating one to fill this slot would mean shipping code this
// worker cannot actually exercise — so the scheme is registered, but every
// call fails loudly with ErrAdapterNotConfigured rather than silently
// no-op'ing a destructive phase.
type mongoStubAdapter struct{}

func newMongoStubAdapter(ctx context.Context, dbURL string) (DestroyAdapter, error) {
	return mongoStubAdapter{}, nil
}

func (mongoStubAdapter) DeleteWorkspace(ctx context.Context, target DestroyTarget) error {
	return ErrAdapterNotConfigured
}

func (mongoStubAdapter) Close(ctx context.Context) error { return nil }
