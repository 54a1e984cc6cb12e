package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

// TokenTTL is how long an access token is trusted after it was issued. The
// server's own expiry is ignored.
const TokenTTL = 2 * time.Hour

// Session is the persisted result of a token exchange.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	InstanceURL  string    `json:"instance_url"`
	UserID       string    `json:"user_id"`
	IssuedAt     time.Time `json:"issued_at"`
}

func (s Session) ExpiresAt() time.Time {
	return s.IssuedAt.Add(TokenTTL)
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// Store persists a single session. Load reports false when nothing is saved.
type Store interface {
	Load() (Session, bool, error)
	Save(Session) error
	Clear() error
}

const (
	deviceSecretSize = 32
	sessionKeyInfo   = "thrive-session-v1"
)

// FileStore keeps the session encrypted with AES-256-GCM. The key is derived
// from a random per-device secret stored beside the token file.
type FileStore struct {
	Path    string
	KeyPath string

	mu sync.Mutex
}

func (s *FileStore) Load() (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("read session file: %w", err)
	}
	aead, err := s.cipher(false)
	if err != nil {
		return Session{}, false, err
	}
	if len(blob) < aead.NonceSize() {
		return Session{}, false, fmt.Errorf("session file is truncated")
	}
	nonce, sealed := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Session{}, false, fmt.Errorf("decrypt session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(plain, &sess); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

func (s *FileStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plain, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	aead, err := s.cipher(true)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	blob := aead.Seal(nonce, nonce, plain, nil)
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Clear removes the session. The device secret stays so later logins reuse it.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (s *FileStore) cipher(create bool) (cipher.AEAD, error) {
	secret, err := s.deviceSecret(create)
	if err != nil {
		return nil, err
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sessionKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init session cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init session cipher: %w", err)
	}
	return aead, nil
}

func (s *FileStore) deviceSecret(create bool) ([]byte, error) {
	secret, err := os.ReadFile(s.KeyPath)
	if err == nil {
		if len(secret) != deviceSecretSize {
			return nil, fmt.Errorf("device key %s has unexpected size %d", s.KeyPath, len(secret))
		}
		return secret, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read device key: %w", err)
	}
	if !create {
		return nil, fmt.Errorf("device key %s is missing; log in again", s.KeyPath)
	}
	secret = make([]byte, deviceSecretSize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("generate device key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.KeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("create device key directory: %w", err)
	}
	if err := os.WriteFile(s.KeyPath, secret, 0o600); err != nil {
		return nil, fmt.Errorf("write device key: %w", err)
	}
	return secret, nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	sess  Session
	saved bool
}

func (s *MemoryStore) Load() (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess, s.saved, nil
}

func (s *MemoryStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess, s.saved = sess, true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess, s.saved = Session{}, false
	return nil
}
