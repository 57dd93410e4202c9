// Package handshake sequences the phases of spec.md §4.H into the
// state machine INIT -> VERSIONED -> KEYED -> HOST_AUTH_OK ->
// USER_AUTH_OK -> SESSION -> CLOSED. No backward transitions; any
// phase error takes the connection directly to CLOSED.
package handshake

import (
	"path/filepath"

	"github.com/bfix-edu/sshcore/auth"
	"github.com/bfix-edu/sshcore/config"
	gerr "github.com/bfix-edu/sshcore/errors"
	"github.com/bfix-edu/sshcore/hostkey"
	"github.com/bfix-edu/sshcore/kdf"
	"github.com/bfix-edu/sshcore/kex"
	"github.com/bfix-edu/sshcore/logger"
	"github.com/bfix-edu/sshcore/metrics"
	"github.com/bfix-edu/sshcore/session"
	"github.com/bfix-edu/sshcore/sessioncipher"
	"github.com/bfix-edu/sshcore/version"
	"github.com/bfix-edu/sshcore/wire"
)

// State names the handshake's phase, mirrored into metrics labels.
type State string

const (
	StateInit        State = "init"
	StateVersioned   State = "versioned"
	StateKeyed       State = "keyed"
	StateHostAuthOK  State = "host_auth_ok"
	StateUserAuthOK  State = "user_auth_ok"
	StateSession     State = "session"
	StateClosed      State = "closed"
)

func recorder(cfg config.Config) *metrics.Recorder {
	if cfg.Registerer == nil {
		return metrics.Noop()
	}
	return metrics.New(cfg.Registerer)
}

func sessionKeysFromSecret(secret []byte) kdf.SessionKeys {
	return kdf.Derive(secret)
}

// RunServer drives one server-side connection through every phase and
// returns a ready session.Session, or an error that already closed the
// connection's logical state (CLOSED).
func RunServer(rw wire.ReadWriter, cfg config.Config) (*session.Session, error) {
	cfg = cfg.WithDefaults()
	rec := recorder(cfg)
	rec.Phase("server", string(StateInit))

	if _, err := version.ExchangeServer(rw, cfg.ServerVersionTag); err != nil {
		return nil, err
	}
	rec.Phase("server", string(StateVersioned))

	secret, err := kex.Server(rw)
	if err != nil {
		return nil, err
	}
	keys := sessionKeysFromSecret(secret)
	rec.Phase("server", string(StateKeyed))

	hk, err := hostkey.LoadOrGenerate(filepath.Join(cfg.BaseDir, "host_key"), cfg.HostKeyPassphrase)
	if err != nil {
		return nil, err
	}
	if err := hostkey.Send(rw, hk); err != nil {
		return nil, err
	}
	rec.Phase("server", string(StateHostAuthOK))

	req, err := auth.Receive(rw)
	if err != nil {
		return nil, err
	}
	authErr := auth.Verify(
		filepath.Join(cfg.BaseDir, "users.json"),
		filepath.Join(cfg.BaseDir, "authorized_keys_"+req.Username),
		req,
	)
	if err := auth.SendResult(rw, authErr == nil); err != nil {
		return nil, err
	}
	if authErr != nil {
		return nil, authErr
	}
	rec.Phase("server", string(StateUserAuthOK))

	sealer, err := sessioncipher.NewSealingKey(keys)
	if err != nil {
		return nil, err
	}
	opener, err := sessioncipher.NewOpeningKey(keys)
	if err != nil {
		return nil, err
	}
	rec.Phase("server", string(StateSession))
	logger.Println(logger.INFO, "[handshake] server session established for "+req.Username)
	return session.New(rw, sealer, opener), nil
}

// RunClient drives one client-side connection through every phase and
// returns a ready session.Session.
func RunClient(rw wire.ReadWriter, cfg config.Config, req auth.Request) (*session.Session, error) {
	cfg = cfg.WithDefaults()
	rec := recorder(cfg)
	rec.Phase("client", string(StateInit))

	if _, err := version.ExchangeClient(rw, cfg.ClientVersionTag); err != nil {
		return nil, err
	}
	rec.Phase("client", string(StateVersioned))

	secret, err := kex.Client(rw)
	if err != nil {
		return nil, err
	}
	keys := sessionKeysFromSecret(secret)
	rec.Phase("client", string(StateKeyed))

	hostPub, err := hostkey.Receive(rw)
	if err != nil {
		return nil, err
	}
	if err := hostkey.VerifyTOFU(filepath.Join(cfg.BaseDir, "known_hosts"), cfg.Hostname, hostPub, cfg.RejectOnMismatch); err != nil {
		_ = hostkey.Reject(rw)
		return nil, err
	}
	if err := hostkey.Ack(rw); err != nil {
		return nil, err
	}
	rec.Phase("client", string(StateHostAuthOK))

	if err := auth.Send(rw, req); err != nil {
		return nil, err
	}
	ok, err := auth.ReceiveResult(rw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, gerr.New(gerr.ErrAuthenticationDenied, "server denied authentication for %q", req.Username)
	}
	rec.Phase("client", string(StateUserAuthOK))

	sealer, err := sessioncipher.NewSealingKey(keys)
	if err != nil {
		return nil, err
	}
	opener, err := sessioncipher.NewOpeningKey(keys)
	if err != nil {
		return nil, err
	}
	rec.Phase("client", string(StateSession))
	logger.Println(logger.INFO, "[handshake] client session established")
	return session.New(rw, sealer, opener), nil
}
