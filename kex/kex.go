// Package kex performs the ephemeral X25519 key agreement of spec.md
// §4.D over the framed packet codec. It uses stdlib crypto/ecdh rather
// than a hand-rolled curve. An EphemeralKeyPair drops its private key
// on the first ComputeSharedSecret call, so the key cannot be reused.
package kex

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"

	gerr "github.com/bfix-edu/sshcore/errors"
	"github.com/bfix-edu/sshcore/logger"
	"github.com/bfix-edu/sshcore/wire"
)

// PublicKeySize is the length in bytes of an X25519 public key.
const PublicKeySize = 32

// EphemeralKeyPair is a freshly generated X25519 key pair, used exactly
// once and then discarded after computing the shared secret.
type EphemeralKeyPair struct {
	private *ecdh.PrivateKey
}

// Generate creates a fresh ephemeral X25519 key pair from crypto/rand.
func Generate() (*EphemeralKeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, gerr.New(gerr.ErrAgreementFailed, "generate ephemeral key: %v", err)
	}
	return &EphemeralKeyPair{private: priv}, nil
}

// PublicKey returns the 32-byte public key to send to the peer.
func (kp *EphemeralKeyPair) PublicKey() []byte {
	return kp.private.PublicKey().Bytes()
}

// ComputeSharedSecret consumes kp's private key computing the shared
// secret with peerPublicKey. kp must not be used again afterward.
func (kp *EphemeralKeyPair) ComputeSharedSecret(peerPublicKey []byte) ([]byte, error) {
	if kp.private == nil {
		return nil, gerr.New(gerr.ErrAgreementFailed, "ephemeral private key already consumed")
	}
	priv := kp.private
	kp.private = nil
	if len(peerPublicKey) != PublicKeySize {
		return nil, gerr.New(gerr.ErrInvalidPublicKey, "expected %d bytes, got %d", PublicKeySize, len(peerPublicKey))
	}
	peer, err := ecdh.X25519().NewPublicKey(peerPublicKey)
	if err != nil {
		return nil, gerr.New(gerr.ErrInvalidPublicKey, "parse peer public key: %v", err)
	}
	secret, err := priv.ECDH(peer)
	if err != nil {
		return nil, gerr.New(gerr.ErrAgreementFailed, "compute shared secret: %v", err)
	}
	return secret, nil
}

// sendPublicKey frames and writes a u32_be(len) | public_key packet.
func sendPublicKey(rw wire.ReadWriter, pub []byte) error {
	payload := make([]byte, 4+len(pub))
	binary.BigEndian.PutUint32(payload[0:4], uint32(len(pub)))
	copy(payload[4:], pub)
	return wire.Encode(rw, payload)
}

// receivePublicKey reads and validates a peer public-key packet.
func receivePublicKey(rw wire.ReadWriter) ([]byte, error) {
	payload, err := wire.Decode(rw)
	if err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, gerr.New(gerr.ErrProtocolError, "key exchange payload too short: %d bytes", len(payload))
	}
	n := binary.BigEndian.Uint32(payload[0:4])
	if int(n) != len(payload)-4 {
		return nil, gerr.New(gerr.ErrProtocolError, "key exchange length field %d does not match payload", n)
	}
	pub := payload[4:]
	if len(pub) != PublicKeySize {
		return nil, gerr.New(gerr.ErrInvalidPublicKey, "expected %d bytes, got %d", PublicKeySize, len(pub))
	}
	return pub, nil
}

// Server performs the server side of the key exchange: write own
// public key first, then read the client's (spec.md §4.D ordering).
func Server(rw wire.ReadWriter) (sharedSecret []byte, err error) {
	kp, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := sendPublicKey(rw, kp.PublicKey()); err != nil {
		return nil, err
	}
	peerPub, err := receivePublicKey(rw)
	if err != nil {
		return nil, err
	}
	logger.Println(logger.DBG, "[kex] server computing shared secret")
	return kp.ComputeSharedSecret(peerPub)
}

// Client performs the client side of the key exchange: read the
// server's public key first, then write its own.
func Client(rw wire.ReadWriter) (sharedSecret []byte, err error) {
	peerPub, err := receivePublicKey(rw)
	if err != nil {
		return nil, err
	}
	kp, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := sendPublicKey(rw, kp.PublicKey()); err != nil {
		return nil, err
	}
	logger.Println(logger.DBG, "[kex] client computing shared secret")
	return kp.ComputeSharedSecret(peerPub)
}
