package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret generates a cryptographically secure random hex secret
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Secrets is the set of server-side secrets an operator must provision
type Secrets struct {
	JWTSecret             string
	JWTRefreshSecret      string
	RazorpayWebhookSecret string
}

// GenerateSecrets generates distinct 256-bit secrets for tokens and webhooks
func GenerateSecrets() (*Secrets, error) {
	var s Secrets
	for name, dst := range map[string]*string{
		"access":  &s.JWTSecret,
		"refresh": &s.JWTRefreshSecret,
		"webhook": &s.RazorpayWebhookSecret,
	} {
		v, err := GenerateSecret(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s secret: %w", name, err)
		}
		*dst = v
	}
	return &s, nil
}
