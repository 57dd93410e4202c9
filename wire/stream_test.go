package wire

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadExact(t *testing.T) {
	r := bytes.NewReader([]byte("hello world"))
	got, err := ReadExact(r, 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestReadExactShort(t *testing.T) {
	r := bytes.NewReader([]byte("hi"))
	if _, err := ReadExact(r, 10); err == nil {
		t.Fatal("expected short-read error")
	}
}

func TestReadLineCRLF(t *testing.T) {
	r := strings.NewReader("SSH-2.0-EduSSH-1.0\r\nnext")
	line, err := ReadLineCRLF(r)
	if err != nil {
		t.Fatal(err)
	}
	if line != "SSH-2.0-EduSSH-1.0" {
		t.Fatalf("got %q", line)
	}
}

func TestReadLineCRLFNoTerminator(t *testing.T) {
	r := strings.NewReader("no terminator here")
	if _, err := ReadLineCRLF(r); err == nil {
		t.Fatal("expected short-read error on EOF without CRLF")
	}
}

func TestWriteAll(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAll(&buf, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "payload" {
		t.Fatalf("got %q", buf.String())
	}
}
