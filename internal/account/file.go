// Package account stores player accounts and verifies credentials.
// Two backends exist: a line file rewritten on every mutation, and PostgreSQL.
package account

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hactazia/quiznet/internal/model"
)

// Sentinel errors translated to wire responses by the dispatcher.
var (
	ErrPseudoTaken        = errors.New("pseudo already exists")
	ErrStoreFull          = errors.New("too many accounts")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// MaxFileAccounts is the account capacity of a FileStore.
const MaxFileAccounts = 100

// FileStore keeps accounts in memory and persists them as pseudo;hash lines.
// The whole file is rewritten on every mutation. Safe for concurrent use.
type FileStore struct {
	mu       sync.Mutex
	path     string
	accounts []model.Account
	index    map[string]int // pseudo → accounts index
}

// OpenFile loads the accounts file at path. A missing file yields an empty
// store; the file is created on the first registration.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, index: make(map[string]int)}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening accounts file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		pseudo, hash, ok := strings.Cut(line, ";")
		if !ok {
			continue
		}
		if _, dup := s.index[pseudo]; dup {
			continue
		}
		s.index[pseudo] = len(s.accounts)
		s.accounts = append(s.accounts, model.Account{Pseudo: pseudo, PasswordHash: hash})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}
	return s, nil
}

// Register creates a new account and persists it synchronously.
func (s *FileStore) Register(ctx context.Context, pseudo, password string) error {
	// Hash outside the lock: Argon2id is deliberately expensive.
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[pseudo]; ok {
		return ErrPseudoTaken
	}
	if len(s.accounts) >= MaxFileAccounts {
		return ErrStoreFull
	}

	s.index[pseudo] = len(s.accounts)
	s.accounts = append(s.accounts, model.Account{Pseudo: pseudo, PasswordHash: hash})
	if err := s.save(); err != nil {
		delete(s.index, pseudo)
		s.accounts = s.accounts[:len(s.accounts)-1]
		return fmt.Errorf("persisting account: %w", err)
	}
	return nil
}

// Authenticate verifies the pseudo/password pair.
func (s *FileStore) Authenticate(ctx context.Context, pseudo, password string) error {
	s.mu.Lock()
	i, ok := s.index[pseudo]
	var hash string
	if ok {
		hash = s.accounts[i].PasswordHash
	}
	s.mu.Unlock()

	if !ok || !VerifyPassword(hash, password) {
		return ErrInvalidCredentials
	}
	return nil
}

// Find returns the account with the given pseudo, or nil, nil when absent.
func (s *FileStore) Find(ctx context.Context, pseudo string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[pseudo]; ok {
		acc := s.accounts[i]
		return &acc, nil
	}
	return nil, nil
}

// Count returns the number of stored accounts.
func (s *FileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// save rewrites the whole accounts file. Caller holds s.mu.
func (s *FileStore) save() error {
	var sb strings.Builder
	for _, acc := range s.accounts {
		sb.WriteString(acc.Pseudo)
		sb.WriteByte(';')
		sb.WriteString(acc.PasswordHash)
		sb.WriteByte('\n')
	}
	return os.WriteFile(s.path, []byte(sb.String()), 0o644)
}
