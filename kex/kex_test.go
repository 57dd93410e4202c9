package kex

import (
	"net"
	"testing"
)

func TestServerClientAgreeOnSecret(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	serverSecret := make(chan []byte, 1)
	serverErr := make(chan error, 1)
	go func() {
		s, err := Server(serverConn)
		serverSecret <- s
		serverErr <- err
	}()

	clientSecret, err := Client(clientConn)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := <-serverErr; err != nil {
		t.Fatalf("server: %v", err)
	}
	if string(<-serverSecret) != string(clientSecret) {
		t.Fatal("server and client disagree on shared secret")
	}
}

func TestComputeSharedSecretRejectsShortKey(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := kp.ComputeSharedSecret([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected InvalidPublicKey error for short key")
	}
}

func TestPublicKeySize(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	if len(kp.PublicKey()) != PublicKeySize {
		t.Fatalf("expected %d-byte public key, got %d", PublicKeySize, len(kp.PublicKey()))
	}
}
