package envelope

import "errors"

var (
	// ErrEncryption signals a key-material or cipher fault on the encrypt
	// path. Configuration problem, never retried.
	ErrEncryption = errors.New("envelope: encryption failed")

	// ErrDecryption signals an undecryptable envelope: RSA failure, a session
	// key that is not 16 bytes, bad padding, or non-JSON plaintext.
	ErrDecryption = errors.New("envelope: decryption failed")
)
