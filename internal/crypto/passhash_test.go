package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 32
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestHashPassword_SaltedEncoding(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("s3nh@forte")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(h1, "argon2id$") || strings.Count(h1, "$") != 2 {
		t.Fatalf("unexpected encoding: %q", h1)
	}
	h2, err := HashPassword("s3nh@forte")
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if h1 == h2 {
		t.Fatalf("same password must hash differently with fresh salts")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatalf("want error on empty password")
	}
}

func TestCheckPassword(t *testing.T) {
	t.Parallel()

	enc, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("correct horse", enc) {
		t.Fatalf("expected true for correct password")
	}
	if CheckPassword("wrong", enc) {
		t.Fatalf("expected false for wrong password")
	}
	if CheckPassword("", enc) {
		t.Fatalf("expected false for empty password")
	}

	for _, bad := range []string{"", "fakehash", "bcrypt$a$b", "argon2id$!!$x", "argon2id$c2FsdA$c2hvcnQ"} {
		if CheckPassword("correct horse", bad) {
			t.Fatalf("expected false for malformed hash %q", bad)
		}
	}
}
