package vault

import "errors"

// ErrInvalidCiphertext indicates the ciphertext is malformed, truncated,
// or failed authentication. Decryption fails closed on this error.
var ErrInvalidCiphertext = errors.New("invalid or corrupted ciphertext")
