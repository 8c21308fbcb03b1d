package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
)

// readKeyFile loads a private key from path. The file may hold a bare PEM key
// or a downloaded service-account JSON key; in the latter case the email is
// returned too.
func readKeyFile(path string) (privateKey, email string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read key file: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", "", fmt.Errorf("key file %s is empty", path)
	}

	if strings.HasPrefix(content, "{") {
		jwtConfig, err := google.JWTConfigFromJSON([]byte(content))
		if err != nil {
			return "", "", fmt.Errorf("invalid service account key: %w", err)
		}
		if len(jwtConfig.PrivateKey) == 0 {
			return "", "", fmt.Errorf("invalid service account key: no private_key field")
		}
		return string(jwtConfig.PrivateKey), jwtConfig.Email, nil
	}

	return content, "", nil
}
