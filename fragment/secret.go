package fragment

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/mkhatri/fragmentd/internal/util"
)

// Argon2id parameters for fragment secrets. Secrets are verified on every
// CRUD call and on stream authentication, so the interactive profile is used.
const (
	argonTime        = 1
	argonMemoryKiB   = 64 * 1024
	argonParallelism = 4
	argonKeyLen      = 32
	argonSaltLen     = 16
)

// HashSecret derives an argon2id hash of the secret with a fresh random salt,
// encoded in PHC string format. The secret is NFKD-normalized first.
func HashSecret(secret string) (string, error) {
	salt, err := util.RandomBytes(argonSaltLen)
	if err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := argon2.IDKey([]byte(util.Normalize(secret)), salt, argonTime, argonMemoryKiB, argonParallelism, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemoryKiB, argonTime, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyHash reports whether the candidate secret matches the stored PHC-encoded
// argon2id hash. Comparison is constant-time.
func VerifyHash(candidate, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("malformed secret hash")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("malformed secret hash version: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("unsupported argon2 version %d", version)
	}
	var memory, time uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &parallelism); err != nil {
		return false, fmt.Errorf("malformed secret hash parameters: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("malformed secret hash salt: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("malformed secret hash key: %w", err)
	}
	key := argon2.IDKey([]byte(util.Normalize(candidate)), salt, time, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}
