package session

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name tokens are filed under.
const KeyringService = "ampwidgets"

// KeyringStore keeps the token in the operating system keychain.
type KeyringStore struct {
	service string
	key     string
}

// NewKeyringStore returns a keyring-backed store for key.
func NewKeyringStore(service, key string) *KeyringStore {
	if service == "" {
		service = KeyringService
	}

	return &KeyringStore{service: service, key: key}
}

func (s *KeyringStore) Put(token string) error {
	if err := keyring.Set(s.service, s.key, token); err != nil {
		return fmt.Errorf("writing token to keyring: %w", err)
	}

	return nil
}

// Get returns the stored token. Keyring failures other than a missing
// entry are also reported as absence.
func (s *KeyringStore) Get() (string, bool) {
	token, err := keyring.Get(s.service, s.key)
	if err != nil {
		return "", false
	}

	return token, true
}

func (s *KeyringStore) IsGranted() bool {
	_, ok := s.Get()
	return ok
}

func (s *KeyringStore) Clear() error {
	err := keyring.Delete(s.service, s.key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting token from keyring: %w", err)
	}

	return nil
}
