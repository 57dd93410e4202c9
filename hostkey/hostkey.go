// Package hostkey implements the server's persistent Ed25519 identity
// (spec.md §4.F) and the client's trust-on-first-use verification of
// it. Concurrent load-or-generate calls for the same path are
// deduplicated with singleflight, matching the handshake-layer cache
// pattern used elsewhere in the example pack for "only one goroutine
// does the expensive thing" semantics.
package hostkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/sync/singleflight"

	gerr "github.com/bfix-edu/sshcore/errors"
	"github.com/bfix-edu/sshcore/fsutil"
	"github.com/bfix-edu/sshcore/logger"
	"github.com/bfix-edu/sshcore/wire"
)

// HostKeyPair is a long-lived Ed25519 signing identity for the server.
type HostKeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// hostKeyDoc is the on-disk JSON shape, spec.md §3: {private_key,
// public_key}. Both fields are []byte, which encoding/json writes as
// base64 strings, not as JSON arrays of numbers; private_key holds the
// 64-byte crypto/ed25519 private key (seed followed by public key).
type hostKeyDoc struct {
	PrivateKey []byte `json:"private_key"`
	PublicKey  []byte `json:"public_key"`
}

var loadGroup singleflight.Group

// LoadOrGenerate loads a host key from path, generating and persisting
// a fresh one if absent. Concurrent callers for the same path and
// passphrase receive the same result via singleflight — safe here
// because load-or-generate is idempotent: every caller wants the one
// true key for that path, not a fresh write of distinct data.
func LoadOrGenerate(path, passphrase string) (*HostKeyPair, error) {
	v, err, _ := loadGroup.Do(path, func() (interface{}, error) {
		return loadOrGenerate(path, passphrase)
	})
	if err != nil {
		return nil, err
	}
	return v.(*HostKeyPair), nil
}

func loadOrGenerate(path, passphrase string) (*HostKeyPair, error) {
	if fsutil.Exists(path) {
		return load(path, passphrase)
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, gerr.New(gerr.ErrKeyLoadFailed, "generate host key: %v", err)
	}
	kp := &HostKeyPair{Private: priv, Public: pub}
	if err := save(path, passphrase, kp); err != nil {
		return nil, err
	}
	logger.Println(logger.INFO, "[hostkey] generated new host key at "+path)
	return kp, nil
}

func load(path, passphrase string) (*HostKeyPair, error) {
	raw, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, gerr.New(gerr.ErrKeyLoadFailed, "read host key: %v", err)
	}
	if passphrase != "" {
		raw, err = unseal(raw, passphrase)
		if err != nil {
			return nil, gerr.New(gerr.ErrKeyLoadFailed, "unseal host key: %v", err)
		}
	}
	var doc hostKeyDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, gerr.New(gerr.ErrKeyLoadFailed, "parse host key document: %v", err)
	}
	return &HostKeyPair{
		Private: ed25519.PrivateKey(doc.PrivateKey),
		Public:  ed25519.PublicKey(doc.PublicKey),
	}, nil
}

func save(path, passphrase string, kp *HostKeyPair) error {
	doc := hostKeyDoc{PrivateKey: kp.Private, PublicKey: kp.Public}
	raw, err := json.Marshal(doc)
	if err != nil {
		return gerr.New(gerr.ErrKeyLoadFailed, "marshal host key document: %v", err)
	}
	if passphrase != "" {
		raw, err = seal(raw, passphrase)
		if err != nil {
			return gerr.New(gerr.ErrKeyLoadFailed, "seal host key: %v", err)
		}
	}
	return fsutil.WriteFileAtomic(path, raw, 0o600)
}

// seal encrypts doc at rest with ChaCha20-Poly1305 under a key derived
// directly from passphrase bytes (addition, off by default — spec.md
// is silent on at-rest protection; see DESIGN.md).
func seal(plaintext []byte, passphrase string) ([]byte, error) {
	key := passphraseKey(passphrase)
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

func unseal(sealed []byte, passphrase string) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSize {
		return nil, gerr.New(gerr.ErrTooShort, "sealed host key too short")
	}
	key := passphraseKey(passphrase)
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSize]
	ciphertext := sealed[chacha20poly1305.NonceSize:]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func passphraseKey(passphrase string) [chacha20poly1305.KeySize]byte {
	// Direct stretch, not a proper password-KDF (scrypt/argon2); this is
	// an optional addition to a design that never specified a
	// passphrase-sealed key format, so it matches the spec's own
	// intentionally-simplified KDF choice elsewhere.
	var key [chacha20poly1305.KeySize]byte
	sum := sha256.Sum256([]byte(passphrase))
	copy(key[:], sum[:])
	return key
}

// --- TOFU client side -------------------------------------------------

// KnownHostsEntry is one line of a known_hosts file: "<hostname>
// <hex(public_key)>".
type KnownHostsEntry struct {
	Hostname  string
	PublicKey ed25519.PublicKey
}

// VerifyTOFU checks hostPublicKey against the known_hosts file at path
// for hostname. If no entry exists, the key is trusted and appended
// (classic TOFU). If an entry exists and disagrees, the result depends
// on rejectOnMismatch: true returns ErrHostKeyRejected, false logs a
// warning and accepts it anyway (legacy default, spec.md §9 hazard).
func VerifyTOFU(path, hostname string, hostPublicKey ed25519.PublicKey, rejectOnMismatch bool) error {
	entries, err := readKnownHosts(path)
	if err != nil {
		return err
	}
	line := hostname + " " + hex.EncodeToString(hostPublicKey) + "\n"
	for _, e := range entries {
		if e.Hostname != hostname {
			continue
		}
		if string(e.PublicKey) == string(hostPublicKey) {
			return nil
		}
		if rejectOnMismatch {
			return gerr.New(gerr.ErrHostKeyRejected, "host key for %s changed", hostname)
		}
		logger.Println(logger.WARN, "[hostkey] host key for "+hostname+" changed, appending new entry (RejectOnMismatch disabled)")
		return fsutil.AppendFile(path, []byte(line))
	}
	return fsutil.AppendFile(path, []byte(line))
}

func readKnownHosts(path string) ([]KnownHostsEntry, error) {
	if !fsutil.Exists(path) {
		return nil, nil
	}
	raw, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, gerr.New(gerr.ErrKeyLoadFailed, "read known_hosts: %v", err)
	}
	var entries []KnownHostsEntry
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		pub, err := hex.DecodeString(parts[1])
		if err != nil {
			continue
		}
		entries = append(entries, KnownHostsEntry{Hostname: parts[0], PublicKey: ed25519.PublicKey(pub)})
	}
	return entries, nil
}

// --- wire exchange ------------------------------------------------

// Send writes u32_be(len) || verifying_key as the host-key packet
// payload, then reads a packet whose payload must be exactly "OK".
func Send(rw wire.ReadWriter, kp *HostKeyPair) error {
	payload := make([]byte, 4+len(kp.Public))
	binary.BigEndian.PutUint32(payload[0:4], uint32(len(kp.Public)))
	copy(payload[4:], kp.Public)
	if err := wire.Encode(rw, payload); err != nil {
		return err
	}
	ack, err := wire.Decode(rw)
	if err != nil {
		return err
	}
	if string(ack) != "OK" {
		return gerr.New(gerr.ErrHostKeyRejected, "expected OK ack, got %q", ack)
	}
	return nil
}

// Receive reads the server's host-key packet and returns the public
// key it carries, without yet verifying it against known_hosts.
func Receive(rw wire.ReadWriter) (ed25519.PublicKey, error) {
	payload, err := wire.Decode(rw)
	if err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, gerr.New(gerr.ErrProtocolError, "host key payload too short")
	}
	n := binary.BigEndian.Uint32(payload[0:4])
	if int(n) != len(payload)-4 {
		return nil, gerr.New(gerr.ErrProtocolError, "host key length field mismatch")
	}
	if int(n) != ed25519.PublicKeySize {
		return nil, gerr.New(gerr.ErrInvalidPublicKey, "expected %d-byte host key, got %d", ed25519.PublicKeySize, n)
	}
	return ed25519.PublicKey(payload[4:]), nil
}

// Ack writes the "OK" acceptance payload back to the server.
func Ack(rw wire.ReadWriter) error {
	return wire.Encode(rw, []byte("OK"))
}

// Reject writes a non-"OK" payload, causing the server's Send to fail
// with ErrHostKeyRejected.
func Reject(rw wire.ReadWriter) error {
	return wire.Encode(rw, []byte("REJECTED"))
}
