package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Crypto constants. IVLen is 16 bytes to match the canonical ciphertext
// format; GCM is instantiated with a matching nonce size.
const (
	KeyLen = 32 // AES-256 key size
	IVLen  = 16
	TagLen = 16
)

// Errors returned by envelope operations.
var (
	// ErrInvalidMasterKey indicates a missing or malformed master key.
	// This is a fatal configuration error, not a recoverable condition.
	ErrInvalidMasterKey = errors.New("master key must be exactly 64 hex characters (32 bytes)")

	// ErrInvalidKey indicates a content key of the wrong length.
	ErrInvalidKey = errors.New("content key must be 32 bytes")

	// ErrIntegrity indicates authentication failure during decryption:
	// the ciphertext, tag, or IV was tampered with, or the wrong key was
	// used. Decryption never returns plaintext in this case.
	ErrIntegrity = errors.New("ciphertext integrity check failed")

	// ErrMalformed indicates data that does not match the canonical
	// "hex:hex:hex" ciphertext format.
	ErrMalformed = errors.New("malformed ciphertext")
)

// Ciphertext is the result of an authenticated encryption: the random IV,
// the GCM authentication tag, and the encrypted data.
type Ciphertext struct {
	IV   []byte
	Tag  []byte
	Data []byte
}

// String returns the canonical external representation,
// "hex(iv):hex(tag):hex(data)".
func (c Ciphertext) String() string {
	return hex.EncodeToString(c.IV) + ":" + hex.EncodeToString(c.Tag) + ":" + hex.EncodeToString(c.Data)
}

// Parse decodes the canonical "hex(iv):hex(tag):hex(data)" form.
// Returns ErrMalformed if the input does not have exactly three non-empty
// hex segments or the IV/tag lengths are wrong.
func Parse(s string) (Ciphertext, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Ciphertext{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(parts))
	}

	raw := make([][]byte, 3)
	for i, p := range parts {
		if p == "" {
			return Ciphertext{}, fmt.Errorf("%w: empty segment", ErrMalformed)
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return Ciphertext{}, fmt.Errorf("%w: segment %d is not hex", ErrMalformed, i)
		}
		raw[i] = b
	}

	if len(raw[0]) != IVLen {
		return Ciphertext{}, fmt.Errorf("%w: iv must be %d bytes", ErrMalformed, IVLen)
	}
	if len(raw[1]) != TagLen {
		return Ciphertext{}, fmt.Errorf("%w: tag must be %d bytes", ErrMalformed, TagLen)
	}

	return Ciphertext{IV: raw[0], Tag: raw[1], Data: raw[2]}, nil
}

// LooksEncrypted reports whether data matches the canonical ciphertext
// shape: exactly three colon-delimited, non-empty, lowercase-hex segments.
//
// This heuristic tolerates legacy unencrypted rows during a migration
// window: decryption is only attempted when it returns true. Natural
// language text does not match; every value produced by Encrypt or WrapKey
// does.
func LooksEncrypted(data string) bool {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
				return false
			}
		}
	}
	return true
}

// GenerateContentKey returns a cryptographically random 256-bit key.
func GenerateContentKey() ([]byte, error) {
	key := make([]byte, KeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate content key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under the given 32-byte content key with a fresh
// random IV.
func Encrypt(plaintext, key []byte) (Ciphertext, error) {
	return seal(plaintext, key)
}

// Decrypt opens a ciphertext sealed by Encrypt. Any tampering with the IV,
// tag, or data fails deterministically with ErrIntegrity; Decrypt never
// returns a plausible-looking wrong plaintext.
func Decrypt(ct Ciphertext, key []byte) ([]byte, error) {
	return open(ct, key)
}

// Cipher performs master-key operations: wrapping and unwrapping per-subject
// content keys. Construction fails if the master key is malformed, so a bad
// deployment configuration surfaces at the first operation that needs it.
type Cipher struct {
	masterKey []byte
}

// NewCipher builds a Cipher from the hex-encoded master key. The key must be
// exactly 64 hex characters (32 bytes); anything else is ErrInvalidMasterKey.
func NewCipher(masterKeyHex string) (*Cipher, error) {
	if len(masterKeyHex) != KeyLen*2 {
		return nil, ErrInvalidMasterKey
	}
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, ErrInvalidMasterKey
	}
	return &Cipher{masterKey: key}, nil
}

// WrapKey encrypts a content key under the master key.
func (c *Cipher) WrapKey(key []byte) (Ciphertext, error) {
	if len(key) != KeyLen {
		return Ciphertext{}, ErrInvalidKey
	}
	return seal(key, c.masterKey)
}

// UnwrapKey decrypts a wrapped content key. Tampering fails with
// ErrIntegrity.
func (c *Cipher) UnwrapKey(ct Ciphertext) ([]byte, error) {
	key, err := open(ct, c.masterKey)
	if err != nil {
		return nil, err
	}
	if len(key) != KeyLen {
		return nil, fmt.Errorf("%w: unwrapped key has wrong length", ErrIntegrity)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVLen)
	if err != nil {
		return nil, fmt.Errorf("GCM: %w", err)
	}
	return gcm, nil
}

func seal(plaintext, key []byte) (Ciphertext, error) {
	if len(key) != KeyLen {
		return Ciphertext{}, ErrInvalidKey
	}
	gcm, err := newGCM(key)
	if err != nil {
		return Ciphertext{}, err
	}

	iv := make([]byte, IVLen)
	if _, err := rand.Read(iv); err != nil {
		return Ciphertext{}, fmt.Errorf("generate iv: %w", err)
	}

	// gcm.Seal appends the tag to the ciphertext; split it back out so the
	// canonical 3-segment form carries the tag separately.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	n := len(sealed) - TagLen

	return Ciphertext{
		IV:   iv,
		Tag:  sealed[n:],
		Data: sealed[:n],
	}, nil
}

func open(ct Ciphertext, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, ErrInvalidKey
	}
	if len(ct.IV) != IVLen || len(ct.Tag) != TagLen {
		return nil, fmt.Errorf("%w: bad iv or tag length", ErrMalformed)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ct.Data)+TagLen)
	sealed = append(sealed, ct.Data...)
	sealed = append(sealed, ct.Tag...)

	plaintext, err := gcm.Open(nil, ct.IV, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}
