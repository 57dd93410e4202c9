// Package sessioncipher implements the AES-256-GCM session AEAD of
// spec.md §4.E: counter-derived nonces over a fixed base IV, two
// independent directions (sealing/opening) sharing one key and base IV
// per the current design (see spec.md §9 on direction separation).
package sessioncipher

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"math"

	gerr "github.com/bfix-edu/sshcore/errors"
	"github.com/bfix-edu/sshcore/kdf"
)

// NonceSize is the GCM nonce length in bytes.
const NonceSize = 12

// TagSize is the GCM authentication tag length in bytes.
const TagSize = 16

// NonceCounter produces successive nonces by XORing a monotonically
// increasing 64-bit counter into the tail of a fixed base IV. No
// counter value may be reused within one direction.
type NonceCounter struct {
	baseIV  [kdf.IVSize]byte
	counter uint64
}

// Next returns the nonce for the current counter value and advances
// the counter. Panics if the counter would overflow, since that would
// force nonce reuse.
func (nc *NonceCounter) Next() [NonceSize]byte {
	if nc.counter == math.MaxUint64 {
		panic("sessioncipher: nonce counter exhausted")
	}
	var nonce [NonceSize]byte
	copy(nonce[:], nc.baseIV[:])
	var ctrBytes [8]byte
	binary.BigEndian.PutUint64(ctrBytes[:], nc.counter)
	for i := 0; i < 8; i++ {
		nonce[4+i] ^= ctrBytes[i]
	}
	nc.counter++
	return nonce
}

// aeadDirection wraps one cipher.AEAD plus its own nonce counter. A
// direction is entirely one-way: a SealingKey only ever seals, an
// OpeningKey only ever opens, each with its own monotonic counter.
type aeadDirection struct {
	aead    cipher.AEAD
	counter NonceCounter
}

func newDirection(key [kdf.KeySize]byte, baseIV [kdf.IVSize]byte) (*aeadDirection, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, gerr.New(gerr.ErrAgreementFailed, "aes cipher init: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, gerr.New(gerr.ErrAgreementFailed, "gcm init: %v", err)
	}
	d := &aeadDirection{aead: aead}
	d.counter.baseIV = baseIV
	return d, nil
}

// SealingKey encrypts outbound plaintext, advancing its own nonce
// counter by one per call.
type SealingKey struct{ dir *aeadDirection }

// OpeningKey decrypts inbound ciphertext, advancing its own nonce
// counter by one per call. Messages MUST arrive in the same order they
// were sealed: nonce counters on both sides advance in lockstep.
type OpeningKey struct{ dir *aeadDirection }

// NewSealingKey constructs a SealingKey from session keys, counter
// starting at 0.
func NewSealingKey(keys kdf.SessionKeys) (*SealingKey, error) {
	d, err := newDirection(keys.EncryptionKey, keys.IV)
	if err != nil {
		return nil, err
	}
	return &SealingKey{dir: d}, nil
}

// NewOpeningKey constructs an OpeningKey from session keys, counter
// starting at 0.
func NewOpeningKey(keys kdf.SessionKeys) (*OpeningKey, error) {
	d, err := newDirection(keys.EncryptionKey, keys.IV)
	if err != nil {
		return nil, err
	}
	return &OpeningKey{dir: d}, nil
}

// Encrypt seals plaintext under the next nonce, returning
// ciphertext || 16-byte tag.
func (s *SealingKey) Encrypt(plaintext []byte) []byte {
	nonce := s.dir.counter.Next()
	return s.dir.aead.Seal(nil, nonce[:], plaintext, nil)
}

// Decrypt opens ciphertext (which must include the trailing tag) under
// the next expected nonce. Returns ErrTooShort if ciphertext is shorter
// than the tag, ErrAuthFailed if the tag does not verify.
func (o *OpeningKey) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < TagSize {
		return nil, gerr.New(gerr.ErrTooShort, "ciphertext length %d < tag size %d", len(ciphertext), TagSize)
	}
	nonce := o.dir.counter.Next()
	plaintext, err := o.dir.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, gerr.New(gerr.ErrAuthFailed, "gcm tag verification failed: %v", err)
	}
	return plaintext, nil
}
