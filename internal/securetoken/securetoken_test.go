package securetoken

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestNewToken(t *testing.T) {
	tests := []struct {
		name       string
		byteLength int
		wantErr    error
	}{
		{name: "default length", byteLength: DefaultTokenBytes},
		{name: "minimum length", byteLength: MinTokenBytes},
		{name: "below minimum", byteLength: 8, wantErr: ErrTokenTooShort},
		{name: "zero", byteLength: 0, wantErr: ErrTokenTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := NewToken(tt.byteLength)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewToken() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewToken() error = %v", err)
			}
			raw, err := base64.RawURLEncoding.DecodeString(token)
			if err != nil {
				t.Fatalf("token is not URL-safe base64: %v", err)
			}
			if len(raw) != tt.byteLength {
				t.Errorf("decoded length = %d, want %d", len(raw), tt.byteLength)
			}
			if strings.ContainsAny(token, "+/=") {
				t.Errorf("token contains non URL-safe characters: %q", token)
			}
		})
	}
}

func TestNewToken_NoCollisions(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		token, err := NewToken(DefaultTokenBytes)
		if err != nil {
			t.Fatalf("NewToken() error = %v", err)
		}
		if seen[token] {
			t.Fatalf("collision after %d tokens: %q", i, token)
		}
		seen[token] = true
	}
}

func TestCodec_DigestVerify(t *testing.T) {
	codec := NewCodec([]byte("test-pepper"))

	secret, err := NewToken(DefaultTokenBytes)
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}

	digest := codec.Digest(secret, salt)

	if !codec.Verify(digest, salt, secret) {
		t.Error("Verify() = false for matching secret")
	}
	if codec.Verify(digest, salt, secret+"x") {
		t.Error("Verify() = true for extended secret")
	}

	// Flip a single bit of the secret.
	flipped := []byte(secret)
	flipped[0] ^= 0x01
	if codec.Verify(digest, salt, string(flipped)) {
		t.Error("Verify() = true for bit-flipped secret")
	}

	// A different salt must not verify.
	otherSalt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}
	if codec.Verify(digest, otherSalt, secret) {
		t.Error("Verify() = true under different salt")
	}

	// A different pepper must not verify.
	other := NewCodec([]byte("other-pepper"))
	if other.Verify(digest, salt, secret) {
		t.Error("Verify() = true under different pepper")
	}
}

func TestCodec_VerifyMalformedInput(t *testing.T) {
	codec := NewCodec([]byte("test-pepper"))

	tests := []struct {
		name      string
		digest    string
		salt      string
		candidate string
	}{
		{name: "empty digest", digest: "", salt: "ab", candidate: "secret"},
		{name: "empty candidate", digest: "abcd", salt: "ab", candidate: ""},
		{name: "non-hex digest", digest: "zzzz", salt: "ab", candidate: "secret"},
		{name: "truncated digest", digest: "abcd", salt: "ab", candidate: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if codec.Verify(tt.digest, tt.salt, tt.candidate) {
				t.Error("Verify() = true, want false")
			}
		})
	}
}

func TestNewSalt_Unique(t *testing.T) {
	a, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}
	b, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}
	if a == b {
		t.Error("two salts are identical")
	}
}
