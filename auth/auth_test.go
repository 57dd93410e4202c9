package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/bfix-edu/sshcore/fsutil"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req := Request{Username: "alice", Method: MethodPassword, Secret: []byte("hunter2")}
	decoded, err := Decode(Encode(req))
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Username != req.Username || decoded.Method != req.Method || string(decoded.Secret) != string(req.Secret) {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}

func TestDecodeTruncationByOneByteIsMalformed(t *testing.T) {
	req := Request{Username: "bob", Method: MethodPassword, Secret: []byte("pw")}
	full := Encode(req)
	for n := 0; n < len(full); n++ {
		if _, err := Decode(full[:n]); err == nil {
			t.Fatalf("truncation to %d bytes should yield MalformedAuth", n)
		}
	}
}

func TestDecodeRejectsInvalidUTF8Username(t *testing.T) {
	payload := []byte{0, 0, 0, 1, 0xff, 0, 0, 0, 0, 0}
	if _, err := Decode(payload); err == nil {
		t.Fatal("expected MalformedAuth for invalid utf-8 username")
	}
}

func TestCheckPasswordCreatesDefaultRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	ok, err := CheckPassword(path, "testuser", "testpass")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected default testuser/testpass to authenticate")
	}
	if !fsutil.Exists(path) {
		t.Fatal("expected users.json to be created")
	}
}

func TestCheckPasswordWrongPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	ok, err := CheckPassword(path, "testuser", "wrong")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected wrong password to fail")
	}
}

func TestCheckPublicKeyAcceptsAuthorizedKey(t *testing.T) {
	dir := t.TempDir()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "authorized_keys_bob")
	if err := fsutil.WriteFileAtomic(path, []byte(hex.EncodeToString(pub)+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ok, err := CheckPublicKey(path, pub)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected authorized key to be accepted")
	}
}

func TestCheckPublicKeyAbsentFileFails(t *testing.T) {
	dir := t.TempDir()
	pub, _, _ := ed25519.GenerateKey(rand.Reader)
	ok, err := CheckPublicKey(filepath.Join(dir, "authorized_keys_nobody"), pub)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected missing authorized_keys file to deny")
	}
}

func TestVerifyDeniesUnknownMethod(t *testing.T) {
	dir := t.TempDir()
	req := Request{Username: "eve", Method: Method(99), Secret: nil}
	err := Verify(filepath.Join(dir, "users.json"), filepath.Join(dir, "authorized_keys_eve"), req)
	if err == nil {
		t.Fatal("expected error for unknown auth method")
	}
}

func TestNormalizeUsernameIdentityOnASCII(t *testing.T) {
	req := Request{Username: "alice", Method: MethodPassword, Secret: []byte("x")}
	decoded, err := Decode(Encode(req))
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Username != "alice" {
		t.Fatalf("ascii username should be unchanged by NFC normalization, got %q", decoded.Username)
	}
}
