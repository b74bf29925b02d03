package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// The operator API is machine-to-machine: the order backend and internal
// tooling authenticate as named services, there are no end-user accounts.
type Claims struct {
	jwt.RegisteredClaims

	// Service names the calling system, e.g. "order-backend".
	Service string `json:"service"`
}
