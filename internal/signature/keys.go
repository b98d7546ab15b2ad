package signature

import "context"

// KeyProvider resolves the shared secret for a key id. Implementations
// return ErrUnknownKey when the id is not registered.
type KeyProvider interface {
	SecretForKey(ctx context.Context, keyID string) ([]byte, error)
}

// StaticKeys is an in-memory keyring built from configuration.
type StaticKeys map[string][]byte

// NewStaticKeys copies a key id to secret table. Entries with an empty
// secret are skipped.
func NewStaticKeys(table map[string]string) StaticKeys {
	keys := make(StaticKeys, len(table))
	for id, secret := range table {
		if secret == "" {
			continue
		}
		keys[id] = []byte(secret)
	}
	return keys
}

// SecretForKey implements KeyProvider.
func (k StaticKeys) SecretForKey(_ context.Context, keyID string) ([]byte, error) {
	secret, ok := k[keyID]
	if !ok || len(secret) == 0 {
		return nil, ErrUnknownKey
	}
	return secret, nil
}

// IDs returns the registered key ids.
func (k StaticKeys) IDs() []string {
	ids := make([]string, 0, len(k))
	for id := range k {
		ids = append(ids, id)
	}
	return ids
}
