package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/timegrid/libs/auth"
)

// organizerID extracts the authenticated organizer. With a JWT secret
// configured the bearer token is verified and its organizer claim wins;
// without one (dev and compose setups behind the gateway) the
// X-Organizer-Id header is trusted.
func organizerID(r *http.Request, jwtSecret string) string {
	if jwtSecret != "" {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return ""
		}
		claims, err := auth.ParseAndVerifyHS256(raw, jwtSecret)
		if err != nil {
			return ""
		}
		return claims.OrganizerID
	}
	return strings.TrimSpace(r.Header.Get("X-Organizer-Id"))
}
