// Package localstore is a filesystem-backed account store.
//
// Layout under the root directory:
//
//	accounts/<hex(id)>.json  one record per account
//	journal/<uuid>.json      pending Apply batches
//
// Account ids are hex-encoded in filenames so ids are unrestricted. Apply
// writes a journal entry before touching any account file and retires it
// after the last write; Open replays pending entries, which makes batches
// crash-atomic. Entries carry absolute record state, so replay is idempotent.
package localstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-sh/custodia/model"
	"github.com/custodia-sh/custodia/store"
)

type Store struct {
	root string
	mu   sync.Mutex
}

// Open prepares the directory layout and replays any journal entries left by
// an interrupted Apply.
func Open(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localstore: root directory is required")
	}
	for _, dir := range []string{accountsDir(root), journalDir(root)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	s := &Store{root: root}
	if err := s.replay(); err != nil {
		return nil, err
	}
	return s, nil
}

func accountsDir(root string) string { return filepath.Join(root, "accounts") }
func journalDir(root string) string  { return filepath.Join(root, "journal") }

func (s *Store) pathFor(id string) string {
	return filepath.Join(accountsDir(s.root), hex.EncodeToString([]byte(id))+".json")
}

func (s *Store) Get(ctx context.Context, id string) (*model.Account, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *Store) read(id string) (*model.Account, error) {
	b, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var a model.Account
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("localstore: decode %s: %w", id, err)
	}
	return &a, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.pathFor(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) Put(ctx context.Context, account *model.Account) error {
	_ = ctx
	if account == nil || account.ID == "" {
		return store.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(account)
}

// write persists one record via temp-file-and-rename so a crash never leaves
// a half-written account file behind.
func (s *Store) write(account *model.Account) error {
	b, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("localstore: encode %s: %w", account.ID, err)
	}
	path := s.pathFor(account.ID)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) Scan(ctx context.Context) ([]*model.Account, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(accountsDir(s.root))
	if err != nil {
		return nil, err
	}
	var out []*model.Account
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		a, err := s.read(string(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type journalEntry struct {
	ID       string           `json:"id"`
	Accounts []*model.Account `json:"accounts"`
}

func (s *Store) Apply(ctx context.Context, batch []*model.Account) error {
	_ = ctx
	for _, a := range batch {
		if a == nil || a.ID == "" {
			return store.ErrInvalidID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := journalEntry{ID: uuid.NewString(), Accounts: batch}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("localstore: encode journal entry: %w", err)
	}
	journalPath := filepath.Join(journalDir(s.root), entry.ID+".json")
	f, err := os.OpenFile(journalPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(journalPath)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(journalPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(journalPath)
		return err
	}

	// The batch is committed once the journal entry is durable; from here
	// every failure is finished by replay on the next Open.
	for _, a := range batch {
		if err := s.write(a); err != nil {
			return err
		}
	}
	return os.Remove(journalPath)
}

// replay finishes batches whose journal entries survived a crash. An entry
// that does not decode was cut off mid-write, meaning its batch never
// committed; it is discarded.
func (s *Store) replay() error {
	entries, err := os.ReadDir(journalDir(s.root))
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(journalDir(s.root), name)
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var entry journalEntry
		if err := json.Unmarshal(b, &entry); err != nil {
			if err := os.Remove(path); err != nil {
				return err
			}
			continue
		}
		for _, a := range entry.Accounts {
			if err := s.write(a); err != nil {
				return err
			}
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
