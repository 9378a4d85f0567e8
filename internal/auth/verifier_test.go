package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
	"time"
)

func signHS256(t *testing.T, secret, payload string) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(header + "." + body))
	return header + "." + body + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestDevModeTokens(t *testing.T) {
	v := NewVerifier("", "")
	pr, err := v.Verify("t1:planner")
	if err != nil || pr.Tenant != "t1" || pr.Role != "planner" {
		t.Fatalf("dev token: %+v %v", pr, err)
	}
	if !pr.CanPlan() || pr.IsAdmin() {
		t.Fatalf("planner role flags: %+v", pr)
	}
	if _, err := v.Verify("garbage"); err == nil {
		t.Fatal("malformed dev token accepted")
	}
}

func TestHMACMode(t *testing.T) {
	v := NewVerifier("hmac", "secret")

	tok := signHS256(t, "secret", fmt.Sprintf(`{"tenant":"t1","role":"admin","exp":%d}`, time.Now().Add(time.Hour).Unix()))
	pr, err := v.Verify(tok)
	if err != nil || pr.Tenant != "t1" || !pr.IsAdmin() {
		t.Fatalf("valid token: %+v %v", pr, err)
	}

	if _, err := v.Verify(signHS256(t, "wrong", `{"tenant":"t1","role":"admin"}`)); err == nil {
		t.Fatal("wrong secret accepted")
	}

	expired := signHS256(t, "secret", fmt.Sprintf(`{"tenant":"t1","role":"admin","exp":%d}`, time.Now().Add(-time.Hour).Unix()))
	if _, err := v.Verify(expired); err == nil {
		t.Fatal("expired token accepted")
	}

	if _, err := v.Verify(signHS256(t, "secret", `{"role":"admin"}`)); err == nil {
		t.Fatal("missing tenant accepted")
	}

	if _, err := v.Verify("a.b"); err == nil {
		t.Fatal("two-segment token accepted")
	}
}
