package valueobject

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSecretKeyInvalid is returned when the sealing key has the wrong length
var ErrSecretKeyInvalid = fmt.Errorf("secret key must be %d bytes", chacha20poly1305.KeySize)

// ErrSecretCorrupt is returned when a sealed value cannot be authenticated
var ErrSecretCorrupt = errors.New("sealed secret is corrupt or was sealed with another key")

// SecretString is a sealed (encrypted) string. It only ever holds ciphertext;
// plaintext is reachable exclusively through SecretSealer.Open.
type SecretString struct {
	sealed string
}

// SealedSecret wraps an already-sealed value, e.g. one read from storage
func SealedSecret(sealed string) SecretString {
	return SecretString{sealed: sealed}
}

// IsEmpty reports whether no secret is set
func (s SecretString) IsEmpty() bool {
	return s.sealed == ""
}

// Sealed returns the ciphertext form
func (s SecretString) Sealed() string {
	return s.sealed
}

// String never reveals the value
func (s SecretString) String() string {
	if s.sealed == "" {
		return ""
	}
	return "[REDACTED]"
}

// MarshalJSON never reveals the value
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Value implements driver.Valuer; only ciphertext reaches the database
func (s SecretString) Value() (driver.Value, error) {
	if s.sealed == "" {
		return nil, nil
	}
	return s.sealed, nil
}

// Scan implements sql.Scanner
func (s *SecretString) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		s.sealed = ""
	case string:
		s.sealed = v
	case []byte:
		s.sealed = string(v)
	default:
		return fmt.Errorf("cannot scan %T into SecretString", value)
	}
	return nil
}

// SecretSealer seals and opens SecretString values with XChaCha20-Poly1305
type SecretSealer struct {
	key []byte
}

// NewSecretSealer creates a sealer from a 32-byte key
func NewSecretSealer(key []byte) (*SecretSealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrSecretKeyInvalid
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &SecretSealer{key: k}, nil
}

// NewSecretSealerFromHex creates a sealer from a hex-encoded key
func NewSecretSealerFromHex(hexKey string) (*SecretSealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	return NewSecretSealer(key)
}

// Seal encrypts plaintext into a SecretString
func (s *SecretSealer) Seal(plaintext string) (SecretString, error) {
	if plaintext == "" {
		return SecretString{}, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return SecretString{}, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return SecretString{}, fmt.Errorf("generate nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SecretString{sealed: base64.StdEncoding.EncodeToString(out)}, nil
}

// Open decrypts a SecretString
func (s *SecretSealer) Open(secret SecretString) (string, error) {
	if secret.sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(secret.sealed)
	if err != nil {
		return "", ErrSecretCorrupt
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrSecretCorrupt
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrSecretCorrupt
	}
	return string(plain), nil
}
