// Package token inspects bearer tokens issued by the service under test.
// Signatures are never verified; only the claims segment is read.
package token

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// DecodeClaims returns the claims of a three-segment JWT without verifying
// its signature. Only the middle segment is decoded, so the header may
// name any algorithm or none. Base64 padding is tolerated.
func DecodeClaims(raw string) (jwt.MapClaims, error) {
	segments := strings.Split(strings.TrimSpace(raw), ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("token has %d segments, want 3", len(segments))
	}

	payload, err := jwt.DecodeSegment(strings.TrimRight(segments[1], "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode token claims: %w", err)
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode token claims: %w", err)
	}
	return claims, nil
}

// HasRole reports whether the roles claim equals role.
func HasRole(claims jwt.MapClaims, role string) bool {
	roles, ok := claims["roles"].(string)
	return ok && roles == role
}

// Preview shortens a token for display.
func Preview(raw string) string {
	const n = 20
	if len(raw) <= n {
		return raw
	}
	return raw[:n] + "..."
}
