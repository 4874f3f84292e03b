package keypool

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/longsihua2026/promptulate/utils"
)

// Store is the durable record of known credentials. It is the only shared
// mutable resource in the scheduler; every mutation happens under its lock so
// concurrent updates to the same credential are observed in a total order.
type Store struct {
	mu       sync.Mutex
	bySecret map[string]*Credential
	order    []*Credential // insertion order, selection tiebreak
	validate *validator.Validate
	logger   utils.Logger
}

func NewStore(logger utils.Logger) *Store {
	return &Store{
		bySecret: make(map[string]*Credential),
		validate: validator.New(),
		logger:   logger,
	}
}

// Add registers a new credential. The secret must be unique within the pool.
func (s *Store) Add(cred Credential) error {
	if err := s.validate.Struct(cred); err != nil {
		return NewPoolError(ErrorTypeInvalidInput, "invalid credential", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySecret[cred.Secret]; exists {
		return NewPoolError(ErrorTypeDuplicate, fmt.Sprintf("credential %s already in pool", Redact(cred.Secret)), nil)
	}

	c := &cred
	s.bySecret[c.Secret] = c
	s.order = append(s.order, c)

	s.logger.Debug("Credential added", "secret", Redact(c.Secret), "model", c.Model)
	return nil
}

// Remove deletes a credential by its secret. Removal is the only way a
// credential ever leaves the pool; repeated failures never evict it.
func (s *Store) Remove(secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.bySecret[secret]
	if !exists {
		return NewPoolError(ErrorTypeNotFound, fmt.Sprintf("credential %s not in pool", Redact(secret)), nil)
	}

	delete(s.bySecret, secret)
	for i, o := range s.order {
		if o == c {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.Debug("Credential removed", "secret", Redact(secret))
	return nil
}

// ListForModel returns copies of the credentials serving model, in insertion
// order. An empty model means "all credentials". Ordering by recency is the
// selector's job, not the store's.
func (s *Store) ListForModel(model string) []Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Credential
	for _, c := range s.order {
		if model != "" && c.Model != model {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// Update atomically applies mutate to the credential identified by secret.
// Subsequent reads observe the whole mutation or none of it.
func (s *Store) Update(secret string, mutate func(*Credential)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.bySecret[secret]
	if !exists {
		return NewPoolError(ErrorTypeNotFound, fmt.Sprintf("credential %s not in pool", Redact(secret)), nil)
	}

	mutate(c)
	return nil
}

// Snapshot returns a copy of every credential, in insertion order.
func (s *Store) Snapshot() []Credential {
	return s.ListForModel("")
}

// Len returns the number of credentials in the pool.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
