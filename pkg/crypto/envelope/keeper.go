package envelope

import (
	"context"
	"fmt"
	"log/slog"
)

// Keeper manages per-subject content keys and the encryption of stored
// content with them. It is the only component that produces or consumes
// content ciphertext.
//
// Content keys are created lazily: the first operation that needs a
// subject's key generates one, wraps it under the master key, and persists
// the wrapped record. The unwrapped key never leaves this package's callers'
// process memory and must never be included in any outward response.
type Keeper struct {
	cipher *Cipher
	store  KeyStore
	logger *slog.Logger
}

// NewKeeper creates a Keeper using the given master-key cipher and wrapped
// key store.
func NewKeeper(cipher *Cipher, store KeyStore) *Keeper {
	return &Keeper{
		cipher: cipher,
		store:  store,
		logger: slog.Default().With("component", "envelope.keeper"),
	}
}

// ContentKey returns the subject's unwrapped content key, generating and
// persisting a wrapped key on first use.
func (k *Keeper) ContentKey(ctx context.Context, subject string) ([]byte, error) {
	rec, err := k.store.Get(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("load wrapped key for %q: %w", subject, err)
	}

	if rec == nil {
		key, err := GenerateContentKey()
		if err != nil {
			return nil, err
		}
		wrapped, err := k.cipher.WrapKey(key)
		if err != nil {
			return nil, err
		}
		if err := k.store.Put(ctx, &WrappedKeyRecord{Subject: subject, WrappedKey: wrapped.String()}); err != nil {
			return nil, fmt.Errorf("persist wrapped key for %q: %w", subject, err)
		}
		k.logger.Info("content key created", "subject", subject)
		return key, nil
	}

	ct, err := Parse(rec.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("wrapped key for %q: %w", subject, err)
	}
	return k.cipher.UnwrapKey(ct)
}

// EncryptContent encrypts plaintext under the subject's content key and
// returns the canonical ciphertext string.
func (k *Keeper) EncryptContent(ctx context.Context, subject string, plaintext []byte) (string, error) {
	key, err := k.ContentKey(ctx, subject)
	if err != nil {
		return "", err
	}
	ct, err := Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	return ct.String(), nil
}

// DecryptContent decrypts a canonical ciphertext string for the subject.
func (k *Keeper) DecryptContent(ctx context.Context, subject string, data string) ([]byte, error) {
	key, err := k.ContentKey(ctx, subject)
	if err != nil {
		return nil, err
	}
	ct, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Decrypt(ct, key)
}

// DecryptBatch decrypts a batch of stored values for a subject, isolating
// per-item failures. Values that do not look encrypted (legacy rows) are
// returned unmodified; a value whose decryption fails is returned unmodified
// and the failure is logged. A single corrupt row never aborts the read.
func (k *Keeper) DecryptBatch(ctx context.Context, subject string, values []string) []string {
	out := make([]string, len(values))
	copy(out, values)

	var key []byte
	for i, v := range values {
		if !LooksEncrypted(v) {
			continue
		}

		if key == nil {
			var err error
			key, err = k.ContentKey(ctx, subject)
			if err != nil {
				k.logger.Error("content key unavailable, returning stored values as-is",
					"subject", subject, "error", err)
				return out
			}
		}

		ct, err := Parse(v)
		if err != nil {
			k.logger.Warn("stored value matched heuristic but failed to parse",
				"subject", subject, "index", i, "error", err)
			continue
		}
		plaintext, err := Decrypt(ct, key)
		if err != nil {
			k.logger.Warn("stored value failed decryption, leaving as-is",
				"subject", subject, "index", i, "error", err)
			continue
		}
		out[i] = string(plaintext)
	}

	return out
}

// DeleteKey removes a subject's wrapped key record, used when the subject is
// deleted. Content encrypted under the key becomes unreadable.
func (k *Keeper) DeleteKey(ctx context.Context, subject string) error {
	return k.store.Delete(ctx, subject)
}
