// Package auth provides token verification for the planner API.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Verifier validates tokens and extracts tenant/role claims. Two
// modes: "dev" accepts tenant:role tokens without verification,
// "hmac" verifies HS256 JWTs against a shared secret.
type Verifier struct {
	Mode       string
	HMACSecret []byte
}

// Principal is the authenticated caller.
type Principal struct {
	Tenant string
	Role   string
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanPlan reports whether the principal may start optimization runs.
func (p Principal) CanPlan() bool { return p.Role == "admin" || p.Role == "planner" }

// NewVerifier returns a verifier for the given mode ("dev" when empty).
func NewVerifier(mode, secret string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{Mode: mode, HMACSecret: []byte(secret)}
}

// Verify parses and checks a token, returning its principal.
func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		parts := strings.Split(token, ":")
		if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
			return Principal{Tenant: parts[0], Role: parts[1]}, nil
		}
		return Principal{}, errors.New("invalid dev token; expected tenant:role")
	}

	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, err
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, err
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, err
	}

	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Principal{}, err
	}
	if header.Alg != "HS256" {
		return Principal{}, errors.New("unsupported algorithm " + header.Alg)
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Principal{}, errors.New("bad signature")
	}

	var claims struct {
		Tenant string `json:"tenant"`
		Role   string `json:"role"`
		Exp    int64  `json:"exp"`
	}
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, err
	}
	if claims.Exp != 0 && time.Now().Unix() > claims.Exp {
		return Principal{}, errors.New("token expired")
	}
	if claims.Tenant == "" {
		return Principal{}, errors.New("missing tenant claim")
	}
	return Principal{Tenant: claims.Tenant, Role: claims.Role}, nil
}

func b64urlDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
