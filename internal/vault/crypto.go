// Package vault implements envelope encryption for vault wallet private keys
// and the lookup surface the Bet Materializer and Payout Engine use to find a
// wallet by multiplier or address.
//
// Security model:
//   - the master key lives only in MASTER_ENCRYPTION_KEY, never in the database
//   - private keys are encrypted before persistence and decrypted only in
//     memory, immediately before signing, then discarded
//   - decrypted keys are never logged
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/evetabi/prediction/internal/domain"
)

// Cipher performs AES-256-GCM envelope encryption of WIF private keys. It
// substitutes for Fernet (used by the Python source) since this deployment
// has no dependency offering an equivalent authenticated-encryption envelope;
// AES-GCM from the standard crypto library provides the same guarantees
// (confidentiality + integrity) with a comparable API shape.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a base64-encoded 32-byte master key. Returns
// domain.ErrMasterKeyMalformed if the key does not decode to exactly 32 bytes.
func NewCipher(masterKeyB64 string) (*Cipher, error) {
	if masterKeyB64 == "" {
		return nil, domain.ErrMasterKeyMissing
	}
	raw, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("vault.NewCipher: %w: %v", domain.ErrMasterKeyMalformed, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("vault.NewCipher: %w: want 32 bytes, got %d", domain.ErrMasterKeyMalformed, len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("vault.NewCipher: %w: %v", domain.ErrMasterKeyMalformed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault.NewCipher: %w: %v", domain.ErrMasterKeyMalformed, err)
	}
	return &Cipher{aead: aead}, nil
}

// GenerateMasterKey returns a fresh base64-encoded 32-byte key suitable for
// MASTER_ENCRYPTION_KEY. Run once at deployment setup, not at request time.
func GenerateMasterKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("vault.GenerateMasterKey: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncryptPrivateKey encrypts a WIF-format private key, returning a
// base64-encoded nonce||ciphertext blob safe to store in
// vault_wallets.encrypted_private_key.
func (c *Cipher) EncryptPrivateKey(wif string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault.EncryptPrivateKey: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(wif), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey, returning the WIF as a raw
// []byte buffer rather than a string. Returns domain.ErrIntegrityTampered if
// the ciphertext fails authentication (wrong master key, or the blob was
// tampered with) — this is payout-fatal and must never be retried.
//
// The returned buffer is owned by the caller, who must use it immediately,
// zero it before it goes out of scope, and never convert it to a string or
// log/persist it in plaintext: a string copy would escape the buffer's
// backing memory into Go's immutable string pool, where it can no longer be
// scrubbed.
func (c *Cipher) DecryptPrivateKey(encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("vault.DecryptPrivateKey: %w: %v", domain.ErrIntegrityTampered, err)
	}
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("vault.DecryptPrivateKey: %w: ciphertext too short", domain.ErrIntegrityTampered)
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("vault.DecryptPrivateKey: %w", domain.ErrIntegrityTampered)
	}
	return plain, nil
}
