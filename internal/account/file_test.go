package account

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hactazia/quiznet/internal/model"
)

func newFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.dat")
	s, err := OpenFile(path)
	require.NoError(t, err)
	return s, path
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	require.NoError(t, s.Register(ctx, "alice", "p1"))

	assert.NoError(t, s.Authenticate(ctx, "alice", "p1"))
	assert.ErrorIs(t, s.Authenticate(ctx, "alice", "bad"), ErrInvalidCredentials)
	assert.ErrorIs(t, s.Authenticate(ctx, "nobody", "p1"), ErrInvalidCredentials)
}

func TestRegisterConflict(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	require.NoError(t, s.Register(ctx, "alice", "p1"))
	assert.ErrorIs(t, s.Register(ctx, "alice", "other"), ErrPseudoTaken)

	// Pseudos are case-sensitive keys.
	assert.NoError(t, s.Register(ctx, "Alice", "p2"))
	assert.Equal(t, 2, s.Count())
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newFileStore(t)

	require.NoError(t, s.Register(ctx, "alice", "p1"))
	require.NoError(t, s.Register(ctx, "bob", "p2"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "alice;$argon2id$"))
	assert.True(t, strings.HasPrefix(lines[1], "bob;$argon2id$"))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())
	assert.NoError(t, reopened.Authenticate(ctx, "alice", "p1"))
	assert.NoError(t, reopened.Authenticate(ctx, "bob", "p2"))

	acc, err := reopened.Find(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "alice", acc.Pseudo)

	acc, err = reopened.Find(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, acc)
}

func TestOpenFileSkipsJunkLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.dat")
	require.NoError(t, os.WriteFile(path, []byte(
		"alice;hash1\n"+
			"\n"+
			"no-separator-line\n"+
			"alice;duplicate-kept-first\n"+
			"bob;hash2\n"), 0o644))

	s, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count())

	acc, err := s.Find(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "hash1", acc.PasswordHash)
}

func TestStoreFull(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	// Pre-seed to capacity without paying for Argon2id per entry.
	s.mu.Lock()
	for i := range MaxFileAccounts {
		pseudo := fmt.Sprintf("player%d", i)
		s.index[pseudo] = len(s.accounts)
		s.accounts = append(s.accounts, model.Account{Pseudo: pseudo, PasswordHash: "x"})
	}
	s.mu.Unlock()

	assert.ErrorIs(t, s.Register(ctx, "overflow", "pw"), ErrStoreFull)
}

func TestConcurrentRegistrations(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Register(ctx, "race", "pw")
		}()
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, ErrPseudoTaken)
		}
	}
	assert.Equal(t, 1, won, "exactly one registration wins")
	assert.Equal(t, 1, s.Count())
}
