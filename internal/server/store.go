package server

import "context"

// AccountStore persists player credentials.
// Implemented by account.FileStore and account.PostgresStore; kept as an
// interface for dependency injection in tests.
type AccountStore interface {
	// Register creates an account. Returns account.ErrPseudoTaken when
	// the pseudo exists and account.ErrStoreFull at capacity.
	Register(ctx context.Context, pseudo, password string) error

	// Authenticate verifies the pseudo/password pair, returning
	// account.ErrInvalidCredentials on any mismatch.
	Authenticate(ctx context.Context, pseudo, password string) error
}
