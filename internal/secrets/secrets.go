// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads provider credentials from a directory of plain-text
// files. Each file holds one secret: the filename is the key and the
// trimmed contents are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/trialscout/pkg/types"
)

// Recognized key files.
const (
	NCBIAPIKey   = "ncbi-api-key"
	ContactEmail = "contact-email"
)

// Load reads every regular, non-hidden file in dir. A missing directory is
// not an error. Unreadable files are logged and skipped.
func Load(dir string, logger zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Str("secret", name).Err(err).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply copies credentials into the source configs that have none set.
// The contact email identifies the caller to both PubMed and ORCID.
func Apply(cfg *types.SourcesConfig, secrets map[string]string) {
	if v := secrets[NCBIAPIKey]; v != "" && cfg.PubMed.APIKey == "" {
		cfg.PubMed.APIKey = v
	}
	if v := secrets[ContactEmail]; v != "" {
		if cfg.PubMed.Email == "" {
			cfg.PubMed.Email = v
		}
		if cfg.ORCID.Email == "" {
			cfg.ORCID.Email = v
		}
	}
}
