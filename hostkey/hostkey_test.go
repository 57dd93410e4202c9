package hostkey

import (
	"encoding/hex"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bfix-edu/sshcore/fsutil"
)

func TestLoadOrGenerateCreatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host_key")

	kp1, err := LoadOrGenerate(path, "")
	if err != nil {
		t.Fatal(err)
	}
	kp2, err := LoadOrGenerate(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if string(kp1.Public) != string(kp2.Public) {
		t.Fatal("second LoadOrGenerate should reload the same key, not regenerate")
	}
}

func TestLoadOrGenerateWithPassphraseRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host_key")

	kp1, err := LoadOrGenerate(path, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	kp2, err := load(path, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if string(kp1.Public) != string(kp2.Public) {
		t.Fatal("sealed host key did not round-trip")
	}
}

func TestVerifyTOFUTrustsFirstUse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	kp, err := LoadOrGenerate(filepath.Join(dir, "host_key"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyTOFU(path, "example.test", kp.Public, true); err != nil {
		t.Fatalf("first use should be trusted: %v", err)
	}
	if err := VerifyTOFU(path, "example.test", kp.Public, true); err != nil {
		t.Fatalf("matching second use should be trusted: %v", err)
	}
}

func TestVerifyTOFURejectsChangedKeyWhenStrict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	kp1, _ := LoadOrGenerate(filepath.Join(dir, "hk1"), "")
	kp2, _ := LoadOrGenerate(filepath.Join(dir, "hk2"), "")

	if err := VerifyTOFU(path, "example.test", kp1.Public, true); err != nil {
		t.Fatal(err)
	}
	if err := VerifyTOFU(path, "example.test", kp2.Public, true); err == nil {
		t.Fatal("expected ErrHostKeyRejected for changed host key under strict policy")
	}
}

func TestVerifyTOFUAcceptsChangedKeyWhenLenient(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	kp1, _ := LoadOrGenerate(filepath.Join(dir, "hk1"), "")
	kp2, _ := LoadOrGenerate(filepath.Join(dir, "hk2"), "")

	if err := VerifyTOFU(path, "example.test", kp1.Public, false); err != nil {
		t.Fatal(err)
	}
	if err := VerifyTOFU(path, "example.test", kp2.Public, false); err != nil {
		t.Fatalf("lenient policy should accept changed key: %v", err)
	}

	raw, err := fsutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	original := "example.test " + hex.EncodeToString(kp1.Public)
	appended := "example.test " + hex.EncodeToString(kp2.Public)
	content := string(raw)
	if !strings.Contains(content, original) {
		t.Fatalf("expected original line %q to survive a lenient mismatch, got %q", original, content)
	}
	if !strings.Contains(content, appended) {
		t.Fatalf("expected new entry %q to be appended on a lenient mismatch, got %q", appended, content)
	}
}

func TestSendReceiveAckRoundTrip(t *testing.T) {
	dir := t.TempDir()
	kp, err := LoadOrGenerate(filepath.Join(dir, "host_key"), "")
	if err != nil {
		t.Fatal(err)
	}

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	sendErr := make(chan error, 1)
	go func() { sendErr <- Send(serverConn, kp) }()

	pub, err := Receive(clientConn)
	if err != nil {
		t.Fatal(err)
	}
	if string(pub) != string(kp.Public) {
		t.Fatal("received public key does not match sent host key")
	}
	if err := Ack(clientConn); err != nil {
		t.Fatal(err)
	}
	if err := <-sendErr; err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendRejectedByClient(t *testing.T) {
	dir := t.TempDir()
	kp, err := LoadOrGenerate(filepath.Join(dir, "host_key"), "")
	if err != nil {
		t.Fatal(err)
	}

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	sendErr := make(chan error, 1)
	go func() { sendErr <- Send(serverConn, kp) }()

	if _, err := Receive(clientConn); err != nil {
		t.Fatal(err)
	}
	if err := Reject(clientConn); err != nil {
		t.Fatal(err)
	}
	if err := <-sendErr; err == nil {
		t.Fatal("expected ErrHostKeyRejected when client rejects")
	}
}
