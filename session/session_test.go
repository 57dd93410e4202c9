package session

import (
	"bytes"
	"net"
	"testing"

	"github.com/bfix-edu/sshcore/kdf"
	"github.com/bfix-edu/sshcore/sessioncipher"
)

func newPairedSessions(t *testing.T) (server *Session, client *Session, cleanup func()) {
	t.Helper()
	keys := kdf.Derive(bytes.Repeat([]byte{0x11}, 32))

	serverSealer, err := sessioncipher.NewSealingKey(keys)
	if err != nil {
		t.Fatal(err)
	}
	serverOpener, err := sessioncipher.NewOpeningKey(keys)
	if err != nil {
		t.Fatal(err)
	}
	clientSealer, err := sessioncipher.NewSealingKey(keys)
	if err != nil {
		t.Fatal(err)
	}
	clientOpener, err := sessioncipher.NewOpeningKey(keys)
	if err != nil {
		t.Fatal(err)
	}

	serverConn, clientConn := net.Pipe()
	server = New(serverConn, serverSealer, serverOpener)
	client = New(clientConn, clientSealer, clientOpener)
	return server, client, func() {
		serverConn.Close()
		clientConn.Close()
	}
}

func TestSendReceiveMessageRoundTrip(t *testing.T) {
	server, client, cleanup := newPairedSessions(t)
	defer cleanup()

	done := make(chan error, 1)
	go func() {
		done <- server.SendMessage([]byte("hello"))
	}()

	got, err := client.ReceiveMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestLoopEchoesAndStopsOnExit(t *testing.T) {
	server, client, cleanup := newPairedSessions(t)
	defer cleanup()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- Loop(server, EchoHandler{})
	}()

	if err := client.SendMessage([]byte("hi there")); err != nil {
		t.Fatal(err)
	}
	reply, err := client.ReceiveMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(reply) != "Echo: hi there" {
		t.Fatalf("got %q", reply)
	}

	if err := client.SendMessage([]byte("exit")); err != nil {
		t.Fatal(err)
	}
	if err := <-loopDone; err != nil {
		t.Fatalf("Loop: %v", err)
	}
}
