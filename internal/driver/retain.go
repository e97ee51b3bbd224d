package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/mrz1836/anchor/internal/fileutil"
)

// Retainer remembers the last active wallet kind across process runs.
// Load returns KindNone when nothing is retained.
type Retainer interface {
	Load() (Kind, error)
	Save(kind Kind) error
	Clear() error
}

// Retain methods accepted by NewRetainer.
const (
	RetainFile    = "file"
	RetainKeyring = "keyring"
)

// NewRetainer returns the retainer for method, storing file state under home.
func NewRetainer(method, home string) Retainer {
	if method == RetainKeyring {
		return NewKeyringRetainer()
	}
	return NewFileRetainer(filepath.Join(home, activeFile))
}

const activeFile = "active.json"

// FileRetainer keeps the last active kind in a small JSON file.
type FileRetainer struct {
	path string
}

type activeRecord struct {
	Kind    Kind      `json:"kind"`
	SavedAt time.Time `json:"saved_at"`
}

// NewFileRetainer creates a retainer backed by path.
func NewFileRetainer(path string) *FileRetainer {
	return &FileRetainer{path: path}
}

// Path returns the backing file path.
func (r *FileRetainer) Path() string {
	return r.path
}

// Load implements Retainer.
func (r *FileRetainer) Load() (Kind, error) {
	var rec activeRecord
	if err := fileutil.ReadJSON(r.path, &rec); err != nil {
		if os.IsNotExist(err) {
			return KindNone, nil
		}
		return KindNone, err
	}
	if !rec.Kind.Valid() {
		return KindNone, unknownKind(string(rec.Kind))
	}
	return rec.Kind, nil
}

// Save implements Retainer.
func (r *FileRetainer) Save(kind Kind) error {
	if !kind.Valid() {
		return unknownKind(string(kind))
	}
	return fileutil.WriteJSONAtomic(r.path, activeRecord{Kind: kind, SavedAt: time.Now().UTC()}, 0o600)
}

// Clear implements Retainer.
func (r *FileRetainer) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", filepath.Base(r.path), err)
	}
	return nil
}

// Keyring entry used by KeyringRetainer.
const (
	keyringService = "anchor"
	keyringUser    = "active-wallet"
)

// KeyringRetainer keeps the last active kind in the OS keychain.
type KeyringRetainer struct {
	service string
	user    string
}

// NewKeyringRetainer creates a keychain-backed retainer.
func NewKeyringRetainer() *KeyringRetainer {
	return &KeyringRetainer{service: keyringService, user: keyringUser}
}

// Load implements Retainer.
func (r *KeyringRetainer) Load() (Kind, error) {
	v, err := keyring.Get(r.service, r.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return KindNone, nil
	}
	if err != nil {
		return KindNone, fmt.Errorf("reading keyring: %w", err)
	}
	k := Kind(v)
	if !k.Valid() {
		return KindNone, unknownKind(v)
	}
	return k, nil
}

// Save implements Retainer.
func (r *KeyringRetainer) Save(kind Kind) error {
	if !kind.Valid() {
		return unknownKind(string(kind))
	}
	if err := keyring.Set(r.service, r.user, string(kind)); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

// Clear implements Retainer.
func (r *KeyringRetainer) Clear() error {
	err := keyring.Delete(r.service, r.user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry: %w", err)
	}
	return nil
}
