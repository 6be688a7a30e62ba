// Package auth extracts the caller identity forwarded by the
// Application Load Balancer.
//
// The ALB sits in front of the service and authenticates users against
// the Cognito user pool before any request reaches a Lambda. It forwards
// the authenticated user's claims as a JWT in the x-amzn-oidc-data
// header. The signature is produced by the ALB itself over a private
// channel, so handlers only decode the claims payload here; requests
// that bypass the ALB never reach the service.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OIDCDataHeader is the ALB header carrying the authenticated user's claims.
const OIDCDataHeader = "x-amzn-oidc-data"

// Claims holds the subset of OIDC claims the service uses.
type Claims struct {
	Email string `json:"email"`
	Sub   string `json:"sub"`
}

// FromRequest decodes the caller's claims from the ALB OIDC header.
// Returns an error when the header is absent or malformed, or when the
// claims carry no email (the user identity key for this service).
func FromRequest(r *http.Request) (*Claims, error) {
	data := r.Header.Get(OIDCDataHeader)
	if data == "" {
		return nil, fmt.Errorf("missing %s header", OIDCDataHeader)
	}
	return ParseOIDCData(data)
}

// ParseOIDCData decodes the claims section of an ALB OIDC data JWT.
func ParseOIDCData(data string) (*Claims, error) {
	parts := strings.Split(data, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed OIDC data: expected 3 JWT sections, got %d", len(parts))
	}

	// The ALB pads its base64 sections, unlike standard JWTs.
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("decode OIDC claims: %w", err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal OIDC claims: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("OIDC claims carry no email")
	}
	return &claims, nil
}
