package keypool

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/longsihua2026/promptulate/utils"
)

// Record is the serialized form of one credential in the state file.
type Record struct {
	Secret        string    `json:"secret"`
	Model         string    `json:"model"`
	LastUsedAt    time.Time `json:"last_used_at"`
	CooldownUntil time.Time `json:"cooldown_until"`
	Failures      int       `json:"failures"`
}

// Persister loads and saves pool contents across process restarts.
// Durability is best effort; losing the most recent cooldown extension only
// risks one extra rate-limited attempt, never the secret set itself.
type Persister interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

// StateSchema returns the JSON Schema of the persisted record format, so
// external tooling can validate a state file without importing this package.
func StateSchema() ([]byte, error) {
	schema := jsonschema.Reflect(&Record{})
	return json.MarshalIndent(schema, "", "  ")
}

// DefaultStatePath places the state file under the user cache directory.
func DefaultStatePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "promptulate", "keys.json"), nil
}

// FileStore persists records as a JSON array on disk. Writes go through a
// temp file and rename so a crash mid-write never corrupts the previous
// state.
type FileStore struct {
	path   string
	logger utils.Logger
}

func NewFileStore(path string, logger utils.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

func (f *FileStore) Load() ([]Record, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, NewPoolError(ErrorTypePersistence, "read state file", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, NewPoolError(ErrorTypePersistence, "parse state file", err)
	}
	return records, nil
}

func (f *FileStore) Save(records []Record) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return NewPoolError(ErrorTypePersistence, "create state dir", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return NewPoolError(ErrorTypePersistence, "encode state", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return NewPoolError(ErrorTypePersistence, "write state file", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return NewPoolError(ErrorTypePersistence, "replace state file", err)
	}

	f.logger.Debug("Pool state saved", "path", f.path, "credentials", len(records))
	return nil
}

// Restore replaces the store contents with the given records, preserving
// their order as the insertion order. Used once at startup.
func (s *Store) Restore(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bySecret = make(map[string]*Credential, len(records))
	s.order = s.order[:0]

	for _, r := range records {
		if r.Secret == "" {
			return NewPoolError(ErrorTypeInvalidInput, "record with empty secret", nil)
		}
		if _, exists := s.bySecret[r.Secret]; exists {
			return NewPoolError(ErrorTypeDuplicate, fmt.Sprintf("duplicate record %s", Redact(r.Secret)), nil)
		}
		c := &Credential{
			Secret:        r.Secret,
			Model:         r.Model,
			LastUsedAt:    r.LastUsedAt,
			CooldownUntil: r.CooldownUntil,
			Failures:      r.Failures,
		}
		s.bySecret[c.Secret] = c
		s.order = append(s.order, c)
	}
	return nil
}

func snapshotRecords(s *Store) []Record {
	creds := s.Snapshot()
	records := make([]Record, len(creds))
	for i, c := range creds {
		records[i] = Record{
			Secret:        c.Secret,
			Model:         c.Model,
			LastUsedAt:    c.LastUsedAt,
			CooldownUntil: c.CooldownUntil,
			Failures:      c.Failures,
		}
	}
	return records
}

// SnapshotRecords exposes the store contents in persisted form, for explicit
// Flush calls outside the dispatcher's write-through path.
func SnapshotRecords(s *Store) []Record {
	return snapshotRecords(s)
}
