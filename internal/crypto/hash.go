package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrEmptyPassword       = errors.New("password must not be empty")
	ErrInvalidHashFormat   = errors.New("invalid encoded hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Parameters of the PBKDF2 scheme used by records imported from the legacy Node service.
const (
	legacyIterations = 10000
	legacyKeyLength  = 64
)

// HashParams configures the Argon2id hashing parameters.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// HashRecord is a stored password credential.
// Salt is only set for legacy PBKDF2 records; argon2id records embed the salt in Hash.
type HashRecord struct {
	Hash string
	Salt string
}

// DefaultHashParams returns recommended Argon2id parameters for password hashing.
func DefaultHashParams() HashParams {
	return HashParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// HashPassword hashes a password using Argon2id with default parameters.
// Returns the hash encoded in PHC string format.
func HashPassword(password string) (string, error) {
	return HashPasswordWithParams(password, DefaultHashParams())
}

// HashPasswordWithParams hashes a password using Argon2id with the given parameters.
func HashPasswordWithParams(password string, params HashParams) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	// $argon2id$v=19$m=65536,t=3,p=2$<base64-salt>$<base64-hash>
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.Memory,
		params.Iterations,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// VerifyPassword reports whether password matches the stored record.
// Comparison is constant-time. Malformed records never match.
func VerifyPassword(password string, rec HashRecord) bool {
	if password == "" || rec.Hash == "" {
		return false
	}
	if rec.Salt != "" {
		return verifyLegacy(password, rec)
	}

	params, salt, hash, err := decodeHash(rec.Hash)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return subtle.ConstantTimeCompare(hash, candidate) == 1
}

// NeedsRehash reports whether rec should be re-hashed with the current defaults.
func NeedsRehash(rec HashRecord) bool {
	return NeedsRehashWithParams(rec, DefaultHashParams())
}

// NeedsRehashWithParams reports whether rec was produced by anything other than argon2id with params.
func NeedsRehashWithParams(rec HashRecord, params HashParams) bool {
	if rec.Salt != "" {
		return true
	}
	got, _, _, err := decodeHash(rec.Hash)
	if err != nil {
		return true
	}
	return got.Memory != params.Memory ||
		got.Iterations != params.Iterations ||
		got.Parallelism != params.Parallelism ||
		got.KeyLength != params.KeyLength
}

// verifyLegacy checks hex PBKDF2-SHA512 records. The salt string is used as-is, not hex-decoded.
func verifyLegacy(password string, rec HashRecord) bool {
	want, err := hex.DecodeString(rec.Hash)
	if err != nil || len(want) != legacyKeyLength {
		return false
	}
	candidate := pbkdf2.Key([]byte(password), []byte(rec.Salt), legacyIterations, legacyKeyLength, sha512.New)
	return subtle.ConstantTimeCompare(want, candidate) == 1
}

// decodeHash parses a PHC-formatted Argon2id hash string.
func decodeHash(encodedHash string) (HashParams, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}

	if parts[1] != "argon2id" {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}
	if version != argon2.Version {
		return HashParams{}, nil, nil, ErrIncompatibleVersion
	}

	var params HashParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}
	if params.Iterations == 0 || params.Parallelism == 0 {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}
	params.SaltLength = uint32(len(salt))

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return HashParams{}, nil, nil, ErrInvalidHashFormat
	}
	params.KeyLength = uint32(len(hash))

	return params, salt, hash, nil
}
