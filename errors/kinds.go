package errors

import "fmt"

// Sentinel error kinds for the secure-channel core. Every package
// wraps one of these with New() to attach phase/step context; callers
// use errors.Is(err, errors.ErrShortRead) (stdlib errors, not this
// package) against the returned *Error, which unwraps to one of these.

var (
	// Transport errors
	ErrShortRead   = fmt.Errorf("short read")
	ErrWriteFailed = fmt.Errorf("write failed")

	// Framing errors
	ErrMalformedFrame = fmt.Errorf("malformed frame")
	ErrInvalidUTF8    = fmt.Errorf("invalid utf-8")

	// Protocol errors
	ErrVersionMismatch = fmt.Errorf("version mismatch")
	ErrProtocolError   = fmt.Errorf("unexpected protocol payload")
	ErrMalformedAuth   = fmt.Errorf("malformed authentication payload")

	// Crypto errors
	ErrInvalidPublicKey = fmt.Errorf("invalid public key")
	ErrAgreementFailed  = fmt.Errorf("key agreement failed")
	ErrAuthFailed       = fmt.Errorf("AEAD authentication failed")
	ErrSignatureInvalid = fmt.Errorf("signature invalid")
	ErrKeyLoadFailed    = fmt.Errorf("key load failed")
	ErrTooShort         = fmt.Errorf("ciphertext too short")

	// Policy errors
	ErrAuthenticationDenied = fmt.Errorf("authentication denied")
	ErrHostKeyRejected      = fmt.Errorf("host key rejected")
)
