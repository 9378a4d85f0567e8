package api

import (
	"net/http"
	"strings"

	"truckplan/internal/auth"
)

// getPrincipal extracts tenant and role from the request.
// A Bearer token goes through the configured verifier; otherwise dev
// headers (X-Tenant-Id, X-Role) apply with permissive defaults.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return pr
		}
	}
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = "t_demo"
	}
	role := r.Header.Get("X-Role")
	if role == "" {
		role = "admin"
	}
	return auth.Principal{Tenant: tenant, Role: role}
}
