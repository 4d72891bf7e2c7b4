package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const secretFileName = ".lodestone_secret"

// LoadOrGenerateSecret returns the API bearer token. LODESTONE_SECRET_KEY wins;
// otherwise a random 32-byte hex secret is persisted in configDir.
func LoadOrGenerateSecret(configDir string) string {
	if s := os.Getenv(envPrefix + "SECRET_KEY"); s != "" {
		return s
	}

	secretPath := filepath.Join(configDir, secretFileName)
	if data, err := os.ReadFile(secretPath); err == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			return s
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal().Err(err).Msg("failed to generate api secret")
	}
	secret := hex.EncodeToString(buf)

	if err := os.WriteFile(secretPath, []byte(secret), 0600); err != nil {
		log.Warn().Err(err).Str("path", secretPath).Msg("could not persist api secret")
	}
	return secret
}
