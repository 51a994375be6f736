package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Security.AdminKeyHash != "" {
		sanitized.Security.AdminKeyHash = maskSecret(sanitized.Security.AdminKeyHash)
	}
	if sanitized.Security.ServiceKeyHash != "" {
		sanitized.Security.ServiceKeyHash = maskSecret(sanitized.Security.ServiceKeyHash)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
