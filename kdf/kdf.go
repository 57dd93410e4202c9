// Package kdf derives per-session keys from the raw X25519 shared
// secret (spec.md §3, §4.D). This is intentionally SHA-256-over-label,
// not HKDF-Extract/Expand — see spec.md §9 for the upgrade path.
package kdf

import "crypto/sha256"

// KeySize is the length in bytes of encryption_key and mac_key.
const KeySize = 32

// IVSize is the length in bytes of the session IV.
const IVSize = 12

// SessionKeys holds the keys derived from one key-agreement shared
// secret. MACKey is carried for shape-compatibility with the source
// design but is unused: AES-256-GCM already provides integrity.
type SessionKeys struct {
	EncryptionKey [KeySize]byte
	MACKey        [KeySize]byte
	IV            [IVSize]byte
}

// Derive is a pure function: the same secret always yields bit-identical
// SessionKeys. Called once per handshake with the 32-byte X25519 shared
// secret.
func Derive(secret []byte) SessionKeys {
	var keys SessionKeys
	keys.EncryptionKey = sha256.Sum256(append(append([]byte{}, secret...), "encryption"...))
	keys.MACKey = sha256.Sum256(append(append([]byte{}, secret...), "mac"...))
	ivDigest := sha256.Sum256(append(append([]byte{}, secret...), "iv"...))
	copy(keys.IV[:], ivDigest[:IVSize])
	return keys
}
