package application

import (
	"context"
	"errors"
	"strings"
	"testing"
)

var fastArgon2idParams = Argon2idParams{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestHashAndVerifyAPIKey(t *testing.T) {
	t.Parallel()

	hash, err := HashAPIKey("terminal-secret", fastArgon2idParams)
	if err != nil {
		t.Fatalf("HashAPIKey returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected hash encoding: %s", hash)
	}

	if err := VerifyAPIKey(hash, "terminal-secret"); err != nil {
		t.Fatalf("expected key to verify, got %v", err)
	}
	if err := VerifyAPIKey(hash, "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	other, err := HashAPIKey("terminal-secret", fastArgon2idParams)
	if err != nil {
		t.Fatalf("HashAPIKey returned error: %v", err)
	}
	if other == hash {
		t.Fatalf("expected a fresh salt per hash")
	}
}

func TestVerifyAPIKeyRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":         "",
		"wrong variant": "$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"bad params":    "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"bad salt":      "$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	}
	for name, encoded := range cases {
		encoded := encoded
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if err := VerifyAPIKey(encoded, "key"); !errors.Is(err, ErrInvalidKeyHash) {
				t.Fatalf("expected ErrInvalidKeyHash, got %v", err)
			}
		})
	}

	if err := VerifyAPIKey("$argon2id$v=16$m=8192,t=1,p=1$c2FsdA$aGFzaA", "key"); !errors.Is(err, ErrIncompatibleKeyVersion) {
		t.Fatalf("expected ErrIncompatibleKeyVersion, got %v", err)
	}
}

func TestAPIKeyAuthenticator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("plain key", func(t *testing.T) {
		auth, err := NewAPIKeyAuthenticator("secret", "", true, nil)
		if err != nil {
			t.Fatalf("NewAPIKeyAuthenticator returned error: %v", err)
		}
		if err := auth.Authenticate(ctx, " secret "); err != nil {
			t.Fatalf("expected key to be accepted, got %v", err)
		}
		for _, presented := range []string{"", "SECRET", "secret2"} {
			if err := auth.Authenticate(ctx, presented); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected %q to be rejected, got %v", presented, err)
			}
		}
	})

	t.Run("hashed key", func(t *testing.T) {
		hash, err := HashAPIKey("secret", fastArgon2idParams)
		if err != nil {
			t.Fatalf("HashAPIKey returned error: %v", err)
		}
		auth, err := NewAPIKeyAuthenticator("ignored", hash, true, nil)
		if err != nil {
			t.Fatalf("NewAPIKeyAuthenticator returned error: %v", err)
		}
		if err := auth.Authenticate(ctx, "secret"); err != nil {
			t.Fatalf("expected hashed key to be accepted, got %v", err)
		}
		if err := auth.Authenticate(ctx, "ignored"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected plain key to be ignored when a hash is set, got %v", err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		auth, err := NewAPIKeyAuthenticator("", "", false, nil)
		if err != nil {
			t.Fatalf("NewAPIKeyAuthenticator returned error: %v", err)
		}
		if auth.Required() {
			t.Fatalf("expected authentication to be optional")
		}
		if err := auth.Authenticate(ctx, ""); err != nil {
			t.Fatalf("expected any request to pass, got %v", err)
		}
	})

	t.Run("configuration errors", func(t *testing.T) {
		if _, err := NewAPIKeyAuthenticator("", "", true, nil); err == nil {
			t.Fatalf("expected error when no key is configured")
		}
		if _, err := NewAPIKeyAuthenticator("", "plain-text", true, nil); !errors.Is(err, ErrInvalidKeyHash) {
			t.Fatalf("expected ErrInvalidKeyHash, got %v", err)
		}
	})
}
