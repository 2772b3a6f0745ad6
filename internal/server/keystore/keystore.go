// Package keystore manages per-file symmetric encryption keys. A key is
// generated once when a file is stored, serialized into the file metadata
// row, and never leaves this package or blobcodec in raw form.
package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/vaultshare/internal/common"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Key is a per-file symmetric encryption key.
type Key []byte

// Generate produces a fresh cryptographically random key. It returns an
// error wrapping common.ErrEntropyUnavailable if the system random source
// fails; there is no fallback to a weaker source.
func Generate() (Key, error) {
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEntropyUnavailable, err)
	}
	return k, nil
}

// Serialize encodes the key into the opaque string stored alongside file
// metadata.
func Serialize(k Key) string {
	return base64.StdEncoding.EncodeToString(k)
}

// Deserialize decodes a key previously produced by Serialize. A malformed
// or wrongly sized value yields common.ErrorValidation.
func Deserialize(s string) (Key, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed key material", common.ErrorValidation)
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("%w: unexpected key length %d", common.ErrorValidation, len(b))
	}
	return b, nil
}
