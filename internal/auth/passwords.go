package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters encoded into every hash. Verification reads the
// parameters back out of the stored string, so these can change without
// invalidating existing hashes.
const (
	argonMemory      uint32 = 64 * 1024
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonSaltLen            = 16
	argonKeyLen      uint32 = 32
)

// HashPassword derives an argon2id hash in PHC string format.
func HashPassword(plaintext string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, argonIterations, argonMemory, argonParallelism, argonKeyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonIterations, argonParallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword checks plaintext against a stored PHC-format hash in
// constant time. A malformed hash is an error, not a mismatch.
func VerifyPassword(hash, plaintext string) (bool, error) {
	memory, iterations, parallelism, salt, key, err := parsePasswordHash(hash)
	if err != nil {
		return false, err
	}

	other := argon2.IDKey([]byte(plaintext), salt, iterations, memory, parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

// RandomPassword returns a throwaway high-entropy password for accounts
// created by federated login. It is hashed and stored but never shown to
// anyone, so it cannot be used for a local login.
func RandomPassword() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func parsePasswordHash(hash string) (memory, iterations uint32, parallelism uint8, salt, key []byte, err error) {
	fail := func(msg string) (uint32, uint32, uint8, []byte, []byte, error) {
		return 0, 0, 0, nil, nil, errors.New(msg)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return fail("invalid argon2id hash format")
	}
	if parts[2] != "v=19" {
		return fail("unsupported argon2 version")
	}

	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fail("invalid argon2 params")
		}
		switch k {
		case "m":
			n, perr := strconv.ParseUint(v, 10, 32)
			if perr != nil {
				return fail("invalid argon2 memory param")
			}
			memory = uint32(n)
		case "t":
			n, perr := strconv.ParseUint(v, 10, 32)
			if perr != nil {
				return fail("invalid argon2 time param")
			}
			iterations = uint32(n)
		case "p":
			n, perr := strconv.ParseUint(v, 10, 8)
			if perr != nil {
				return fail("invalid argon2 parallelism param")
			}
			parallelism = uint8(n)
		default:
			return fail("unknown argon2 param")
		}
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fail("invalid argon2 salt")
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fail("invalid argon2 key")
	}
	if len(salt) == 0 || len(key) == 0 {
		return fail("invalid argon2 salt/key")
	}

	return memory, iterations, parallelism, salt, key, nil
}
