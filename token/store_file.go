package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceLength = 24
	keyLength   = 32
	keyInfo     = "cyberguard token store v1"
)

var _ Store = (*FileStore)(nil)

// FileStore seals the pair with NaCl secretbox and writes it to a single file. Writes go
// through a temp file and a rename so a crash never leaves a half written token file.
type FileStore struct {
	path string
	key  [keyLength]byte
	mu   sync.Mutex
}

// NewFileStore derives the sealing key from secret with HKDF-SHA256.
func NewFileStore(path, secret string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	if secret == "" {
		return nil, errors.New("[NewFileStore] secret is required")
	}
	fs := &FileStore{path: path}
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), fs.key[:]); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] derive key")
	}
	return fs, nil
}

func (fs *FileStore) Save(_ context.Context, pair Pair) error {
	plain, err := json.Marshal(pair)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] marshal")
	}

	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "[FileStore.Save] nonce")
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &fs.key)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "[FileStore.Save] mkdir")
	}
	tempFile := fs.path + ".tmp"
	if err := os.WriteFile(tempFile, sealed, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.Save] write temp file")
	}
	if err := os.Rename(tempFile, fs.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf("[FileStore.Save] rename: %v; remove temp file: %w", err, removeErr)
		}
		return errors.Wrap(err, "[FileStore.Save] rename")
	}
	return nil
}

func (fs *FileStore) Read(_ context.Context) (Pair, bool) {
	fs.mu.Lock()
	sealed, err := os.ReadFile(fs.path)
	fs.mu.Unlock()
	if err != nil {
		if !os.IsNotExist(err) {
			log.Err(err).Str("path", fs.path).Msg("Failed to read token file")
		}
		return Pair{}, false
	}

	if len(sealed) < nonceLength {
		log.Warn().Str("path", fs.path).Msg("Token file is truncated")
		return Pair{}, false
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])
	plain, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, &fs.key)
	if !ok {
		log.Warn().Str("path", fs.path).Msg("Token file could not be opened with the configured secret")
		return Pair{}, false
	}

	var pair Pair
	if err := json.Unmarshal(plain, &pair); err != nil {
		log.Err(err).Str("path", fs.path).Msg("Token file is corrupt")
		return Pair{}, false
	}
	if pair.Empty() {
		return Pair{}, false
	}
	return pair, true
}

func (fs *FileStore) Clear(_ context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] remove")
	}
	return nil
}
