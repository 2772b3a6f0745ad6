package services

import (
	"crypto/subtle"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/vaultshare/internal/common"
)

// Argon2id parameters, per the RFC 9106 low-memory recommendation.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32

	saltSize = 16
)

func newSalt() ([]byte, error) {
	return common.GenerateRandByteArray(saltSize)
}

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func checkPassword(hash []byte, salt []byte, candidate string) bool {
	return subtle.ConstantTimeCompare(hash, hashPassword(candidate, salt)) == 1
}
