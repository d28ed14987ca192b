// Package cipher implements the AES-128-CTR dual-direction encryption layer
// installed transparently over the ACP transport once SRP authentication
// succeeds.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"sync"
	"sync/atomic"

	"github.com/nlowe/acpctl/internal/acperrors"
)

// EncryptionContext holds the two independent AES-128-CTR keystreams
// established after a successful SRP exchange: one for bytes the client
// sends, one for bytes the client receives. Both streams advance
// monotonically and are never rewound.
type EncryptionContext struct {
	installed atomic.Bool

	mu        sync.Mutex
	encryptor cipher.Stream
	decryptor cipher.Stream
}

// New constructs an uninstalled EncryptionContext. Call Install once the SRP
// handshake completes.
func New() *EncryptionContext {
	return &EncryptionContext{}
}

// Install activates the context with the client->server key/IV (used to
// encrypt outbound bytes) and the server->client key/IV (used to decrypt
// inbound bytes). Install may only be called once; a second call returns
// EncryptionStateError.
func (e *EncryptionContext) Install(clientKey, clientIV, serverKey, serverIV []byte) error {
	if !e.installed.CompareAndSwap(false, true) {
		return &acperrors.EncryptionStateError{Reason: "encryption context already installed"}
	}

	encBlock, err := aes.NewCipher(clientKey)
	if err != nil {
		return &acperrors.EncryptionStateError{Reason: "invalid client key: " + err.Error()}
	}
	decBlock, err := aes.NewCipher(serverKey)
	if err != nil {
		return &acperrors.EncryptionStateError{Reason: "invalid server key: " + err.Error()}
	}

	e.mu.Lock()
	e.encryptor = cipher.NewCTR(encBlock, clientIV)
	e.decryptor = cipher.NewCTR(decBlock, serverIV)
	e.mu.Unlock()
	return nil
}

// Installed reports whether Install has already succeeded.
func (e *EncryptionContext) Installed() bool {
	return e.installed.Load()
}

// Encrypt advances the client->server keystream over plaintext, returning
// the ciphertext. It is an error to call this before Install.
func (e *EncryptionContext) Encrypt(plaintext []byte) ([]byte, error) {
	if !e.Installed() {
		return nil, &acperrors.EncryptionStateError{Reason: "encryption context not installed"}
	}

	out := make([]byte, len(plaintext))
	e.mu.Lock()
	e.encryptor.XORKeyStream(out, plaintext)
	e.mu.Unlock()
	return out, nil
}

// Decrypt advances the server->client keystream over ciphertext, returning
// the plaintext. It is an error to call this before Install.
func (e *EncryptionContext) Decrypt(ciphertext []byte) ([]byte, error) {
	if !e.Installed() {
		return nil, &acperrors.EncryptionStateError{Reason: "encryption context not installed"}
	}

	out := make([]byte, len(ciphertext))
	e.mu.Lock()
	e.decryptor.XORKeyStream(out, ciphertext)
	e.mu.Unlock()
	return out, nil
}
