// Package blobcodec encrypts and decrypts byte streams with AES-GCM.
//
// Payloads are processed in bounded chunks so that memory use does not grow
// with file size. The ciphertext layout is:
//
//	[7-byte nonce prefix][chunk]...[final chunk]
//
// where each chunk is a 4-byte big-endian ciphertext length followed by the
// AES-GCM sealing of up to 64 KiB of plaintext. The per-chunk nonce is the
// prefix, a big-endian chunk counter, and a final-chunk marker byte, so a
// truncated, reordered, or corrupted stream fails authentication. Plaintext
// for a chunk is only released after its tag verifies.
package blobcodec

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/vaultshare/internal/common"
)

const (
	// ChunkSize is the maximum plaintext length sealed per chunk.
	ChunkSize = 64 * 1024

	noncePrefixSize = 7
	nonceSize       = 12
	tagSize         = 16
	lenSize         = 4

	lastChunkMarker = 0x01
)

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: bad encryption key: %v", common.ErrorValidation, err)
	}
	return cipher.NewGCM(block)
}

func chunkNonce(prefix []byte, counter uint32, final bool) []byte {
	nonce := make([]byte, nonceSize)
	copy(nonce, prefix)
	binary.BigEndian.PutUint32(nonce[noncePrefixSize:], counter)
	if final {
		nonce[nonceSize-1] = lastChunkMarker
	}
	return nonce
}

// readChunk fills b as far as possible. It returns io.EOF (possibly together
// with n > 0 for a short final read) once the source is exhausted; other
// source errors are returned verbatim.
func readChunk(r io.Reader, b []byte) (int, error) {
	n, err := io.ReadFull(r, b)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return n, io.EOF
	case errors.Is(err, io.EOF):
		return 0, io.EOF
	default:
		return n, err
	}
}

// Encrypt reads plaintext from src, encrypts it under key and writes the
// ciphertext to dst. It returns the number of ciphertext bytes written.
// Empty input is valid and produces a single authenticated empty chunk.
// Source and destination I/O errors are returned verbatim.
func Encrypt(key []byte, dst io.Writer, src io.Reader) (int64, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return 0, err
	}

	prefix, err := common.GenerateRandByteArray(noncePrefixSize)
	if err != nil {
		return 0, err
	}

	var written int64
	n, err := dst.Write(prefix)
	written += int64(n)
	if err != nil {
		return written, err
	}

	cur := make([]byte, ChunkSize)
	next := make([]byte, ChunkSize)
	lenBuf := make([]byte, lenSize)

	curN, err := readChunk(src, cur)
	if err != nil && !errors.Is(err, io.EOF) {
		return written, err
	}

	var counter uint32
	for {
		nextN, rerr := readChunk(src, next)
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return written, rerr
		}
		final := nextN == 0 && errors.Is(rerr, io.EOF)

		sealed := aead.Seal(nil, chunkNonce(prefix, counter, final), cur[:curN], nil)

		binary.BigEndian.PutUint32(lenBuf, uint32(len(sealed)))
		n, err = dst.Write(lenBuf)
		written += int64(n)
		if err != nil {
			return written, err
		}
		n, err = dst.Write(sealed)
		written += int64(n)
		if err != nil {
			return written, err
		}

		if final {
			return written, nil
		}
		counter++
		cur, next = next, cur
		curN = nextN
	}
}

// Decrypt reads ciphertext produced by Encrypt from src, verifies and
// decrypts it under key, and writes the plaintext to dst. It returns the
// number of plaintext bytes written.
//
// Any authentication failure, including a wrong key, corruption, reordering
// or truncation of the stream, yields common.ErrDecryptionFailed. I/O errors
// from src or dst propagate verbatim so callers can tell data corruption
// apart from storage failures.
func Decrypt(key []byte, dst io.Writer, src io.Reader) (int64, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return 0, err
	}

	prefix := make([]byte, noncePrefixSize)
	if _, err := io.ReadFull(src, prefix); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("%w: truncated header", common.ErrDecryptionFailed)
		}
		return 0, err
	}

	var written int64
	lenBuf := make([]byte, lenSize)
	sealed := make([]byte, 0, ChunkSize+tagSize)

	var counter uint32
	for {
		if _, err := io.ReadFull(src, lenBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// The final chunk was never seen: the stream is cut short.
				return written, fmt.Errorf("%w: truncated stream", common.ErrDecryptionFailed)
			}
			return written, err
		}

		chunkLen := binary.BigEndian.Uint32(lenBuf)
		if chunkLen < tagSize || chunkLen > ChunkSize+tagSize {
			return written, fmt.Errorf("%w: invalid chunk length %d", common.ErrDecryptionFailed, chunkLen)
		}

		sealed = sealed[:chunkLen]
		if _, err := io.ReadFull(src, sealed); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return written, fmt.Errorf("%w: truncated chunk", common.ErrDecryptionFailed)
			}
			return written, err
		}

		plaintext, openErr := aead.Open(nil, chunkNonce(prefix, counter, false), sealed, nil)
		final := false
		if openErr != nil {
			plaintext, openErr = aead.Open(nil, chunkNonce(prefix, counter, true), sealed, nil)
			final = true
		}
		if openErr != nil {
			return written, common.ErrDecryptionFailed
		}

		n, err := dst.Write(plaintext)
		written += int64(n)
		if err != nil {
			return written, err
		}

		if final {
			// Nothing may follow the final chunk.
			var trail [1]byte
			if _, err := io.ReadFull(src, trail[:]); !errors.Is(err, io.EOF) {
				return written, fmt.Errorf("%w: trailing data", common.ErrDecryptionFailed)
			}
			return written, nil
		}
		counter++
	}
}
