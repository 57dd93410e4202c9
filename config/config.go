// Package config carries the explicit configuration values the
// secure-channel core needs. None of the core packages read the
// environment or a filesystem default directly; a hosting collaborator
// (a CLI front end, a test harness) resolves these values once and
// passes a Config into handshake.RunServer / handshake.RunClient.
package config

import "github.com/prometheus/client_golang/prometheus"

// DefaultServerVersionTag and DefaultClientVersionTag are the
// implementation tags used to build the "SSH-2.0-<tag>" banner of spec.md §4.C.
const (
	DefaultServerVersionTag = "EduSSH-1.0"
	DefaultClientVersionTag = "EduSSH-Client-1.0"

	// DefaultHostname is the known_hosts key RunClient falls back to
	// when a caller leaves Hostname unset, e.g. in tests that dial over
	// an in-memory pipe rather than a real address.
	DefaultHostname = "server"
)

// Config is the explicit, side-effect-free configuration value shared
// by every phase of the handshake and the session loop.
type Config struct {
	// BaseDir is the directory holding host_key, known_hosts,
	// users.json and authorized_keys_<user>. Callers default this to
	// $HOME/.ssh_edu themselves; the core never inspects $HOME.
	BaseDir string

	// Hostname is the client's identifier for the server it is dialing,
	// used as the known_hosts key for TOFU verification (spec.md §4.F).
	// Callers should pass the host portion of whatever address they
	// dialed (e.g. the host half of a "host:port" -addr flag) so that
	// distinct servers get distinct known_hosts entries. Only consulted
	// by RunClient; RunServer ignores it.
	Hostname string

	// ServerVersionTag / ClientVersionTag replace the hardcoded
	// "EduSSH-1.0" / "EduSSH-Client-1.0" tags in the version banner.
	ServerVersionTag string
	ClientVersionTag string

	// RejectOnMismatch selects the TOFU policy for a known_hosts
	// mismatch (spec.md §9, "TOFU policy" open question). false (the
	// default) preserves the legacy accept-and-append behavior that
	// spec.md §8 scenario 4 pins. true makes a mismatch a hard
	// errors.ErrHostKeyRejected.
	RejectOnMismatch bool

	// HostKeyPassphrase, when non-empty, seals the host key's private
	// scalar at rest with ChaCha20-Poly1305 instead of writing it in
	// the clear. Empty (the default) preserves the plaintext JSON
	// shape spec.md §3/§6 describes.
	HostKeyPassphrase string

	// Registerer, if non-nil, is where metrics.Recorder registers its
	// counters. Nil is valid and yields a no-op recorder.
	Registerer prometheus.Registerer
}

// WithDefaults fills zero-valued fields with their spec-mandated
// defaults, returning a copy.
func (c Config) WithDefaults() Config {
	if c.ServerVersionTag == "" {
		c.ServerVersionTag = DefaultServerVersionTag
	}
	if c.ClientVersionTag == "" {
		c.ClientVersionTag = DefaultClientVersionTag
	}
	if c.Hostname == "" {
		c.Hostname = DefaultHostname
	}
	return c
}
