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

// HashParams tunes the argon2id work factor. Zero fields fall back to the
// defaults, so config only has to override what it cares about.
type HashParams struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
}

const (
	defaultMemoryKB    = 64 * 1024
	defaultIterations  = 3
	defaultParallelism = 2
	saltLen            = 16
	keyLen             = 32
)

type Hasher struct {
	params HashParams
}

func NewHasher(p HashParams) Hasher {
	if p.MemoryKB == 0 {
		p.MemoryKB = defaultMemoryKB
	}
	if p.Iterations == 0 {
		p.Iterations = defaultIterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = defaultParallelism
	}
	return Hasher{params: p}
}

func (h Hasher) Hash(plaintext string) (string, error) {
	p := h.params
	if p.MemoryKB == 0 {
		p = NewHasher(HashParams{}).params
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, p.Iterations, p.MemoryKB, p.Parallelism, keyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.MemoryKB,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// VerifyPassword recomputes the digest with the parameters encoded in the
// stored hash and compares in constant time.
func VerifyPassword(hash, plaintext string) (bool, error) {
	params, salt, key, err := parseArgon2idHash(hash)
	if err != nil {
		return false, err
	}

	otherKey := argon2.IDKey([]byte(plaintext), salt, params.Iterations, params.MemoryKB, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, otherKey) == 1, nil
}

func parseArgon2idHash(hash string) (HashParams, []byte, []byte, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return HashParams{}, nil, nil, errors.New("invalid argon2id hash format")
	}
	if parts[2] != "v=19" {
		return HashParams{}, nil, nil, errors.New("unsupported argon2 version")
	}

	var p HashParams
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return HashParams{}, nil, nil, errors.New("invalid argon2 params")
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return HashParams{}, nil, nil, errors.New("invalid argon2 memory param")
			}
			p.MemoryKB = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return HashParams{}, nil, nil, errors.New("invalid argon2 time param")
			}
			p.Iterations = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return HashParams{}, nil, nil, errors.New("invalid argon2 parallelism param")
			}
			p.Parallelism = uint8(n)
		default:
			return HashParams{}, nil, nil, errors.New("unknown argon2 param")
		}
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return HashParams{}, nil, nil, errors.New("invalid argon2 salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return HashParams{}, nil, nil, errors.New("invalid argon2 key")
	}
	if len(salt) == 0 || len(key) == 0 {
		return HashParams{}, nil, nil, errors.New("invalid argon2 salt/key")
	}

	return p, salt, key, nil
}
