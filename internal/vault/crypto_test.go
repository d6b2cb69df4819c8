package vault_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/vault"
)

func testKey(t *testing.T) string {
	t.Helper()
	key, err := vault.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := vault.NewCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	const wif = "L1aW4aubDFB7yfras2S1mN3bqg9nwySY8nkoLmJebSLD5BWv3ENZ"
	encrypted, err := c.EncryptPrivateKey(wif)
	if err != nil {
		t.Fatalf("EncryptPrivateKey: %v", err)
	}
	if encrypted == wif {
		t.Fatal("EncryptPrivateKey returned plaintext unchanged")
	}

	decrypted, err := c.DecryptPrivateKey(encrypted)
	if err != nil {
		t.Fatalf("DecryptPrivateKey: %v", err)
	}
	if string(decrypted) != wif {
		t.Fatalf("round trip mismatch: want %q, got %q", wif, decrypted)
	}
}

func TestEncryptNeverProducesTheSameBlobTwice(t *testing.T) {
	c, err := vault.NewCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	a, err := c.EncryptPrivateKey("same-input-key")
	if err != nil {
		t.Fatalf("EncryptPrivateKey: %v", err)
	}
	b, err := c.EncryptPrivateKey("same-input-key")
	if err != nil {
		t.Fatalf("EncryptPrivateKey: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same plaintext produced identical ciphertext — nonce reuse")
	}
}

func TestDecryptWrongMasterKeyFails(t *testing.T) {
	c1, err := vault.NewCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	c2, err := vault.NewCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	encrypted, err := c1.EncryptPrivateKey("a-private-key")
	if err != nil {
		t.Fatalf("EncryptPrivateKey: %v", err)
	}
	if _, err := c2.DecryptPrivateKey(encrypted); !errors.Is(err, domain.ErrIntegrityTampered) {
		t.Fatalf("expected ErrIntegrityTampered decrypting with the wrong key, got %v", err)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	c, err := vault.NewCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	encrypted, err := c.EncryptPrivateKey("a-private-key")
	if err != nil {
		t.Fatalf("EncryptPrivateKey: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF // flip a bit in the authentication tag
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := c.DecryptPrivateKey(tampered); !errors.Is(err, domain.ErrIntegrityTampered) {
		t.Fatalf("expected ErrIntegrityTampered on tampered ciphertext, got %v", err)
	}
}

func TestNewCipherRejectsMalformedKeys(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"not base64":   "!!!not-base64!!!",
		"wrong length": base64.StdEncoding.EncodeToString([]byte("too-short")),
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := vault.NewCipher(key); err == nil {
				t.Fatalf("expected error for %s key", name)
			} else if key != "" && !errors.Is(err, domain.ErrMasterKeyMalformed) {
				t.Fatalf("expected ErrMasterKeyMalformed, got %v", err)
			} else if key == "" && !errors.Is(err, domain.ErrMasterKeyMissing) {
				t.Fatalf("expected ErrMasterKeyMissing, got %v", err)
			}
		})
	}
}

func TestGenerateMasterKeyProducesValidKey(t *testing.T) {
	key, err := vault.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	if strings.TrimSpace(key) == "" {
		t.Fatal("GenerateMasterKey returned an empty key")
	}
	if _, err := vault.NewCipher(key); err != nil {
		t.Fatalf("generated key failed NewCipher validation: %v", err)
	}
}
