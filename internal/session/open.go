package session

import "fmt"

// Backend names accepted by Open.
const (
	BackendBolt    = "bolt"
	BackendKeyring = "keyring"
	BackendMemory  = "memory"
)

// Open returns the store for backend along with a close function that
// releases it. path is only used by the bolt backend; an empty path
// selects DefaultPath.
func Open(backend, path, key string) (Store, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case BackendBolt, "":
		if path == "" {
			p, err := DefaultPath()
			if err != nil {
				return nil, nil, err
			}

			path = p
		}

		s, err := OpenBolt(path, key)
		if err != nil {
			return nil, nil, err
		}

		return s, s.Close, nil
	case BackendKeyring:
		return NewKeyringStore(KeyringService, key), noop, nil
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	}

	return nil, nil, fmt.Errorf("unknown session backend %q", backend)
}
