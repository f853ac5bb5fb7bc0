package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hactazia/quiznet/internal/model"
)

// PostgresStore persists accounts in PostgreSQL through a pgx pool.
// Unlike FileStore it has no capacity limit.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool. The accounts table is managed by the
// embedded migrations in internal/db.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Register creates a new account. Uniqueness is enforced by the primary key,
// so concurrent registrations of the same pseudo cannot both succeed.
func (s *PostgresStore) Register(ctx context.Context, pseudo, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (pseudo, password_hash)
		 VALUES ($1, $2)
		 ON CONFLICT (pseudo) DO NOTHING`,
		pseudo, hash,
	)
	if err != nil {
		return fmt.Errorf("inserting account %q: %w", pseudo, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPseudoTaken
	}
	return nil
}

// Authenticate verifies the pseudo/password pair.
func (s *PostgresStore) Authenticate(ctx context.Context, pseudo, password string) error {
	acc, err := s.Find(ctx, pseudo)
	if err != nil {
		return err
	}
	if acc == nil || !VerifyPassword(acc.PasswordHash, password) {
		return ErrInvalidCredentials
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE accounts SET last_login = now() WHERE pseudo = $1`, pseudo)
	if err != nil {
		return fmt.Errorf("updating last login for %q: %w", pseudo, err)
	}
	return nil
}

// Find returns the account with the given pseudo, or nil, nil when absent.
func (s *PostgresStore) Find(ctx context.Context, pseudo string) (*model.Account, error) {
	var acc model.Account
	err := s.pool.QueryRow(ctx,
		`SELECT pseudo, password_hash FROM accounts WHERE pseudo = $1`, pseudo,
	).Scan(&acc.Pseudo, &acc.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying account %q: %w", pseudo, err)
	}
	return &acc, nil
}
