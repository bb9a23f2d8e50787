package remote

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	fresh := NewSession(signedToken(t, now.Add(time.Hour)))
	if fresh.Expired(now) {
		t.Error("token expiring in an hour reported expired")
	}

	stale := NewSession(signedToken(t, now.Add(-time.Minute)))
	if !stale.Expired(now) {
		t.Error("expired token not detected")
	}
}

func TestSessionOpaqueTokens(t *testing.T) {
	now := time.Now()
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if NewSession(tok).Expired(now) {
			t.Errorf("opaque token %q reported expired", tok)
		}
	}
}

func TestSessionSetToken(t *testing.T) {
	s := NewSession("old")
	s.SetToken("new")
	if s.Token() != "new" {
		t.Fatalf("Token = %q, want new", s.Token())
	}
}
