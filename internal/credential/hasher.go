// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = oops.Code("CREDENTIAL_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash returns a PHC-formatted hash of password.
	Hash(password string) (string, error)

	// Verify returns (true, nil) on match, (false, nil) on mismatch, and an
	// error when the hash cannot be parsed.
	Verify(password, hash string) (bool, error)
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultArgon2Params follows the OWASP argon2id recommendation.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with p; zero fields take the defaults.
func NewArgon2idHasher(p Argon2Params) *Argon2idHasher {
	d := DefaultArgon2Params
	if p.Time == 0 {
		p.Time = d.Time
	}
	if p.Memory == 0 {
		p.Memory = d.Memory
	}
	if p.Threads == 0 {
		p.Threads = d.Threads
	}
	if p.SaltLen == 0 {
		p.SaltLen = d.SaltLen
	}
	if p.KeyLen == 0 {
		p.KeyLen = d.KeyLen
	}
	return &Argon2idHasher{params: p}
}

// Hash implements PasswordHasher.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("CREDENTIAL_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify implements PasswordHasher. The cost parameters come from the hash,
// so hashes made with other parameters still verify.
func (h *Argon2idHasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return false, invalidHash("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, invalidHash("unsupported hash algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("CREDENTIAL_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return false, invalidHash("unsupported argon2 version %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, oops.Code("CREDENTIAL_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return false, invalidHash("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("CREDENTIAL_INVALID_HASH").Wrap(err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("CREDENTIAL_INVALID_HASH").Wrap(err)
	}
	if len(want) == 0 || len(want) > 1<<10 {
		return false, invalidHash("invalid key length %d", len(want))
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func invalidHash(format string, args ...any) error {
	return oops.Code("CREDENTIAL_INVALID_HASH").Errorf(format, args...)
}

// Compile-time interface check.
var _ PasswordHasher = (*Argon2idHasher)(nil)
