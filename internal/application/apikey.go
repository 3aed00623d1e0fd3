package application

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidKeyHash         = errors.New("invalid api key hash format")
	ErrIncompatibleKeyVersion = errors.New("incompatible api key hash version")
)

type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashAPIKey encodes key as $argon2id$v=19$m=...,t=...,p=...$salt$hash.
func HashAPIKey(key string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	format := "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	return fmt.Sprintf(format, argon2.Version, params.Memory, params.Iterations, params.Parallelism, b64Salt, b64Hash), nil
}

// VerifyAPIKey checks key against an encoded argon2id hash. A mismatch returns
// ErrUnauthorized; a malformed hash returns ErrInvalidKeyHash.
func VerifyAPIKey(encoded, key string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return ErrInvalidKeyHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return ErrInvalidKeyHash
	}
	if version != argon2.Version {
		return ErrIncompatibleKeyVersion
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return ErrInvalidKeyHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrInvalidKeyHash
	}
	decoded, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(decoded) == 0 {
		return ErrInvalidKeyHash
	}

	candidate := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(decoded)))
	if subtle.ConstantTimeCompare(decoded, candidate) == 1 {
		return nil
	}
	return ErrUnauthorized
}

// APIKeyAuthenticator checks the key presented by a client. Exactly one of the
// plain key and the argon2id hash is used; the hash wins when both are set.
type APIKeyAuthenticator struct {
	plain    string
	hash     string
	required bool
	logger   *slog.Logger
}

// NewAPIKeyAuthenticator constructs an authenticator. When required is false
// every request is accepted.
func NewAPIKeyAuthenticator(plain, hash string, required bool, logger *slog.Logger) (*APIKeyAuthenticator, error) {
	plain = strings.TrimSpace(plain)
	hash = strings.TrimSpace(hash)
	if required && plain == "" && hash == "" {
		return nil, fmt.Errorf("api key or api key hash is required when authentication is enabled")
	}
	if hash != "" && !strings.HasPrefix(hash, "$argon2id$") {
		return nil, ErrInvalidKeyHash
	}
	return &APIKeyAuthenticator{
		plain:    plain,
		hash:     hash,
		required: required,
		logger:   defaultLogger(logger),
	}, nil
}

// Required reports whether requests must present a key.
func (a *APIKeyAuthenticator) Required() bool {
	return a != nil && a.required
}

// Authenticate returns ErrUnauthorized unless presented matches the configured key.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, presented string) (err error) {
	if a == nil {
		return fmt.Errorf("APIKeyAuthenticator is nil")
	}
	if !a.required {
		return nil
	}

	logger := serviceLogger(ctx, a.logger, "APIKeyAuthenticator", "Authenticate")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "api key rejected", "error_kind", ErrorKind(err))
		}
	}()

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return ErrUnauthorized
	}

	if a.hash != "" {
		if verifyErr := VerifyAPIKey(a.hash, presented); verifyErr != nil {
			if errors.Is(verifyErr, ErrUnauthorized) {
				return ErrUnauthorized
			}
			return fmt.Errorf("verify api key: %w", verifyErr)
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(a.plain), []byte(presented)) == 1 {
		return nil
	}
	return ErrUnauthorized
}
