// Package version implements the protocol version banner exchange of
// spec.md §4.C. Each side sends "SSH-2.0-<tag>\r\n" and reads the
// peer's banner with wire.ReadLineCRLF; negotiation fails unless both
// majors equal and both equal 2.
//
// Ordering asymmetry (spec.md §4.C, flagged again in §9): a client
// reads the server's banner first, then writes its own; a server
// writes first, then reads. This is preserved exactly as specified —
// it is a documented hazard, not a bug, and must not be "fixed" here.
package version

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	gerr "github.com/bfix-edu/sshcore/errors"
	"github.com/bfix-edu/sshcore/logger"
	"github.com/bfix-edu/sshcore/wire"
)

// Banner builds the "SSH-2.0-<tag>" string for a given implementation tag.
func Banner(tag string) string {
	return "SSH-2.0-" + tag
}

// Send writes "<version>\r\n" to w.
func Send(w io.Writer, version string) error {
	if err := wire.WriteAll(w, []byte(version+"\r\n")); err != nil {
		return err
	}
	logger.Printf(logger.INFO, "[version] sent: %s", version)
	return nil
}

// Receive reads a CRLF-terminated version line from r.
func Receive(r io.Reader) (string, error) {
	line, err := wire.ReadLineCRLF(r)
	if err != nil {
		return "", err
	}
	logger.Printf(logger.INFO, "[version] received: %s", line)
	return line, nil
}

// Parse extracts the major version number from a string shaped like
// "SSH-<major>.<minor>-<rest>".
func Parse(versionString string) (uint8, error) {
	rest, ok := strings.CutPrefix(versionString, "SSH-")
	if !ok {
		return 0, gerr.New(gerr.ErrVersionMismatch, "missing 'SSH-' prefix in %q", versionString)
	}
	majorMinor, _, _ := strings.Cut(rest, "-")
	major, _, _ := strings.Cut(majorMinor, ".")
	n, err := strconv.ParseUint(major, 10, 8)
	if err != nil {
		return 0, gerr.New(gerr.ErrVersionMismatch, "invalid version number in %q: %v", versionString, err)
	}
	return uint8(n), nil
}

// Negotiate fails with ErrVersionMismatch unless both versions parse to
// the same major, and that major is 2.
func Negotiate(clientVersion, serverVersion string) error {
	clientMajor, err := Parse(clientVersion)
	if err != nil {
		return gerr.New(gerr.ErrVersionMismatch, "client version: %v", err)
	}
	serverMajor, err := Parse(serverVersion)
	if err != nil {
		return gerr.New(gerr.ErrVersionMismatch, "server version: %v", err)
	}
	if clientMajor != serverMajor {
		return gerr.New(gerr.ErrVersionMismatch, "client=%d server=%d", clientMajor, serverMajor)
	}
	if clientMajor != 2 {
		return gerr.New(gerr.ErrVersionMismatch, "only SSH-2.0 is supported, got %d", clientMajor)
	}
	logger.Println(logger.INFO, fmt.Sprintf("[version] negotiated SSH-%d.0", clientMajor))
	return nil
}

// ExchangeServer performs the server side of the version exchange:
// write first, then read (spec.md §4.C ordering).
func ExchangeServer(rw wire.ReadWriter, tag string) (peerVersion string, err error) {
	ownVersion := Banner(tag)
	if err = Send(rw, ownVersion); err != nil {
		return "", err
	}
	peerVersion, err = Receive(rw)
	if err != nil {
		return "", err
	}
	if err = Negotiate(peerVersion, ownVersion); err != nil {
		return "", err
	}
	return peerVersion, nil
}

// ExchangeClient performs the client side of the version exchange:
// read first, then write (spec.md §4.C ordering).
func ExchangeClient(rw wire.ReadWriter, tag string) (peerVersion string, err error) {
	peerVersion, err = Receive(rw)
	if err != nil {
		return "", err
	}
	ownVersion := Banner(tag)
	if err = Send(rw, ownVersion); err != nil {
		return "", err
	}
	if err = Negotiate(ownVersion, peerVersion); err != nil {
		return "", err
	}
	return peerVersion, nil
}
