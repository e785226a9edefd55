package config

import (
	"log"
	"os"
	"time"
)

const defaultJWTExpiration = 24 * time.Hour

var (
	JWTSecret     []byte
	JWTExpiration time.Duration
)

func init() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Println("JWT_SECRET is not set, tokens are signed with an insecure development secret")
		secret = "tabforum-insecure-dev-secret"
	}
	JWTSecret = []byte(secret)

	JWTExpiration = parseJWTExpiration(envOr("JWT_EXPIRATION", ""))
}

// parseJWTExpiration reads a Go duration string such as "24h" or "30m".
func parseJWTExpiration(raw string) time.Duration {
	if raw == "" {
		return defaultJWTExpiration
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		log.Printf("Invalid JWT_EXPIRATION %q, using %s", raw, defaultJWTExpiration)
		return defaultJWTExpiration
	}
	return parsed
}
