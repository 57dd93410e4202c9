// Package session implements the post-handshake encrypted message loop
// of spec.md §4.I: each message is a framed packet carrying
// u32_be(cipher_len) || ciphertext, decrypted in strict send order.
package session

import (
	"encoding/binary"

	gerr "github.com/bfix-edu/sshcore/errors"
	"github.com/bfix-edu/sshcore/logger"
	"github.com/bfix-edu/sshcore/sessioncipher"
	"github.com/bfix-edu/sshcore/wire"
)

// Session wraps the encrypted transport state produced by a completed
// handshake: one sealing direction, one opening direction, both bound
// to the same underlying transport.
type Session struct {
	rw     wire.ReadWriter
	sealer *sessioncipher.SealingKey
	opener *sessioncipher.OpeningKey
}

// New constructs a Session from a transport and the sealing/opening
// keys derived from the handshake's SessionKeys.
func New(rw wire.ReadWriter, sealer *sessioncipher.SealingKey, opener *sessioncipher.OpeningKey) *Session {
	return &Session{rw: rw, sealer: sealer, opener: opener}
}

// SendMessage encrypts plaintext and writes it as a framed packet
// carrying u32_be(cipher_len) || ciphertext.
func (s *Session) SendMessage(plaintext []byte) error {
	ciphertext := s.sealer.Encrypt(plaintext)
	payload := make([]byte, 4+len(ciphertext))
	binary.BigEndian.PutUint32(payload[0:4], uint32(len(ciphertext)))
	copy(payload[4:], ciphertext)
	return wire.Encode(s.rw, payload)
}

// ReceiveMessage reads one framed packet, validates the inner length,
// and decrypts it in the next expected nonce-counter slot.
func (s *Session) ReceiveMessage() ([]byte, error) {
	payload, err := wire.Decode(s.rw)
	if err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, gerr.New(gerr.ErrProtocolError, "session message payload too short")
	}
	n := binary.BigEndian.Uint32(payload[0:4])
	if int(n) != len(payload)-4 {
		return nil, gerr.New(gerr.ErrProtocolError, "session message length field mismatch")
	}
	return s.opener.Decrypt(payload[4:])
}

// exitSentinel is the echo-server convention that ends a session.
const exitSentinel = "exit"

// Handler processes one decrypted inbound message and returns the
// plaintext reply to send back, or ok=false to end the loop without a
// reply.
type Handler interface {
	Handle(plaintext []byte) (reply []byte, ok bool)
}

// EchoHandler is the reference application of spec.md §4.I: it echoes
// every message back prefixed with "Echo: ".
type EchoHandler struct{}

// Handle implements Handler.
func (EchoHandler) Handle(plaintext []byte) ([]byte, bool) {
	return append([]byte("Echo: "), plaintext...), true
}

// Loop runs the encrypted message loop until the plaintext equals
// "exit", ReceiveMessage returns ErrAuthFailed, or the transport
// closes. Each inbound message is passed to handler; if a reply is
// produced, it is sent back before the next receive.
func Loop(s *Session, handler Handler) error {
	for {
		plaintext, err := s.ReceiveMessage()
		if err != nil {
			return err
		}
		if string(plaintext) == exitSentinel {
			logger.Println(logger.INFO, "[session] received exit, closing")
			return nil
		}
		reply, ok := handler.Handle(plaintext)
		if !ok {
			return nil
		}
		if err := s.SendMessage(reply); err != nil {
			return err
		}
	}
}
