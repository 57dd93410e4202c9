// Package auth implements client authentication (spec.md §4.G):
// password or public-key proof-of-identity, carried as one strictly
// bounds-checked wire payload. Usernames are normalized to Unicode NFC
// before being used as a map/file-name key, so two visually identical
// usernames in different normal forms cannot alias distinct
// authorized_keys files or bypass the users.json lookup.
package auth

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	gerr "github.com/bfix-edu/sshcore/errors"
	"github.com/bfix-edu/sshcore/fsutil"
	"github.com/bfix-edu/sshcore/logger"
	"github.com/bfix-edu/sshcore/wire"
)

// Method identifies how the client proves its identity.
type Method byte

const (
	MethodPassword  Method = 0
	MethodPublicKey Method = 1
)

// Request is a parsed client authentication request.
type Request struct {
	Username string
	Method   Method
	Secret   []byte
}

// Encode builds the wire payload for an auth request:
// u32_be(ulen) | username | u8(method) | u32_be(slen) | secret.
func Encode(req Request) []byte {
	uname := []byte(req.Username)
	buf := make([]byte, 4+len(uname)+1+4+len(req.Secret))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(uname)))
	copy(buf[4:], uname)
	offset := 4 + len(uname)
	buf[offset] = byte(req.Method)
	offset++
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(req.Secret)))
	copy(buf[offset+4:], req.Secret)
	return buf
}

// Decode parses an auth request payload with strict bounds checks at
// every step; any violation yields ErrMalformedAuth, never a panic or
// an out-of-bounds read.
func Decode(payload []byte) (Request, error) {
	if len(payload) < 4 {
		return Request{}, gerr.New(gerr.ErrMalformedAuth, "payload shorter than username length field")
	}
	ulen := int(binary.BigEndian.Uint32(payload[0:4]))
	if len(payload) < 4+ulen {
		return Request{}, gerr.New(gerr.ErrMalformedAuth, "payload shorter than username")
	}
	uname := payload[4 : 4+ulen]
	if !utf8.Valid(uname) {
		return Request{}, gerr.New(gerr.ErrMalformedAuth, "username is not valid utf-8")
	}
	methodOffset := 4 + ulen
	if len(payload) <= methodOffset {
		return Request{}, gerr.New(gerr.ErrMalformedAuth, "payload has no method byte")
	}
	method := Method(payload[methodOffset])
	if len(payload) < methodOffset+5 {
		return Request{}, gerr.New(gerr.ErrMalformedAuth, "payload shorter than secret length field")
	}
	slen := int(binary.BigEndian.Uint32(payload[methodOffset+1 : methodOffset+5]))
	if len(payload) < methodOffset+5+slen {
		return Request{}, gerr.New(gerr.ErrMalformedAuth, "payload shorter than secret")
	}
	secret := payload[methodOffset+5 : methodOffset+5+slen]

	return Request{
		Username: normalizeUsername(string(uname)),
		Method:   method,
		Secret:   secret,
	}, nil
}

// normalizeUsername maps a username to Unicode NFC. The identity
// transform on ASCII usernames (alice, bob, testuser).
func normalizeUsername(username string) string {
	return norm.NFC.String(username)
}

// Send writes an auth request as a single framed packet.
func Send(rw wire.ReadWriter, req Request) error {
	return wire.Encode(rw, Encode(req))
}

// Receive reads and decodes one auth request packet.
func Receive(rw wire.ReadWriter) (Request, error) {
	payload, err := wire.Decode(rw)
	if err != nil {
		return Request{}, err
	}
	return Decode(payload)
}

// --- password store --------------------------------------------------

// passwordDoc is the users.json shape: username -> password.
type passwordDoc map[string]string

// defaultPasswordDoc seeds a fresh users.json when none exists.
func defaultPasswordDoc() passwordDoc {
	return passwordDoc{"testuser": "testpass"}
}

// CheckPassword opens usersPath (creating it with the default
// testuser/testpass record if absent) and compares the presented
// password to the stored one by exact string equality (spec.md §9
// flags this as a hazard: no constant-time comparison, no hashing).
func CheckPassword(usersPath, username, password string) (bool, error) {
	doc, err := loadOrCreatePasswordDoc(usersPath)
	if err != nil {
		return false, err
	}
	stored, ok := doc[username]
	if !ok {
		return false, nil
	}
	return stored == password, nil
}

func loadOrCreatePasswordDoc(usersPath string) (passwordDoc, error) {
	if !fsutil.Exists(usersPath) {
		doc := defaultPasswordDoc()
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, gerr.New(gerr.ErrKeyLoadFailed, "marshal default users.json: %v", err)
		}
		if err := fsutil.WriteFileAtomic(usersPath, raw, 0o600); err != nil {
			return nil, err
		}
		logger.Println(logger.INFO, "[auth] created default users.json at "+usersPath)
		return doc, nil
	}
	raw, err := fsutil.ReadFile(usersPath)
	if err != nil {
		return nil, err
	}
	var doc passwordDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, gerr.New(gerr.ErrKeyLoadFailed, "parse users.json: %v", err)
	}
	return doc, nil
}

// --- public-key store --------------------------------------------------

// CheckPublicKey opens the authorized-keys file at authorizedKeysPath
// (authorized_keys_<username> in the handshake) and accepts iff some trimmed line equals the hex encoding of
// presentedKey. Absence of the file is a failure, not an error.
func CheckPublicKey(authorizedKeysPath string, presentedKey ed25519.PublicKey) (bool, error) {
	if !fsutil.Exists(authorizedKeysPath) {
		return false, nil
	}
	raw, err := fsutil.ReadFile(authorizedKeysPath)
	if err != nil {
		return false, err
	}
	want := hex.EncodeToString(presentedKey)
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) == want {
			return true, nil
		}
	}
	return false, nil
}

// Verify dispatches to CheckPassword or CheckPublicKey based on
// req.Method, returning ErrAuthenticationDenied on failure.
func Verify(usersPath, authorizedKeysPath string, req Request) error {
	var ok bool
	var err error
	switch req.Method {
	case MethodPassword:
		ok, err = CheckPassword(usersPath, req.Username, string(req.Secret))
	case MethodPublicKey:
		if len(req.Secret) != ed25519.PublicKeySize {
			return gerr.New(gerr.ErrInvalidPublicKey, "expected %d-byte public key, got %d", ed25519.PublicKeySize, len(req.Secret))
		}
		ok, err = CheckPublicKey(authorizedKeysPath, ed25519.PublicKey(req.Secret))
	default:
		return gerr.New(gerr.ErrMalformedAuth, "unknown auth method %d", req.Method)
	}
	if err != nil {
		return err
	}
	if !ok {
		return gerr.New(gerr.ErrAuthenticationDenied, "authentication denied for user %q", req.Username)
	}
	return nil
}

// SendResult writes "SUCCESS" or "FAILURE" as the server's response to
// an auth request.
func SendResult(rw wire.ReadWriter, ok bool) error {
	if ok {
		return wire.Encode(rw, []byte("SUCCESS"))
	}
	return wire.Encode(rw, []byte("FAILURE"))
}

// ReceiveResult reads the server's SUCCESS/FAILURE response.
func ReceiveResult(rw wire.ReadWriter) (bool, error) {
	payload, err := wire.Decode(rw)
	if err != nil {
		return false, err
	}
	switch string(payload) {
	case "SUCCESS":
		return true, nil
	case "FAILURE":
		return false, nil
	default:
		return false, gerr.New(gerr.ErrProtocolError, "unexpected auth result payload %q", payload)
	}
}
