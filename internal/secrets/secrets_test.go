// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trialscout/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, NCBIAPIKey, "  ncbi_abc123  \n")
				writeFile(t, dir, ContactEmail, "ops@example.org\n")
				return dir
			},
			want: map[string]string{
				NCBIAPIKey:   "ncbi_abc123",
				ContactEmail: "ops@example.org",
			},
		},
		{
			name: "missing directory yields empty map",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "absent")
			},
			want: map[string]string{},
		},
		{
			name: "skips blank files, dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, NCBIAPIKey, "k")
				writeFile(t, dir, "blank", " \n\t")
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden", "secret")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
				return dir
			},
			want: map[string]string{NCBIAPIKey: "k"},
		},
	}

	for _, tt := range tests {
		tt := tt // per-iteration copy (Go 1.22 loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read mode 0000 files")
	}
	dir := t.TempDir()
	writeFile(t, dir, ContactEmail, "ops@example.org")

	bad := filepath.Join(dir, NCBIAPIKey)
	require.NoError(t, os.WriteFile(bad, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(bad, 0o644) })

	got, err := Load(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ops@example.org", got[ContactEmail])
	assert.NotContains(t, got, NCBIAPIKey)
}

func TestApply(t *testing.T) {
	cfg := types.SourcesConfig{}
	Apply(&cfg, map[string]string{NCBIAPIKey: "k", ContactEmail: "ops@example.org"})
	assert.Equal(t, "k", cfg.PubMed.APIKey)
	assert.Equal(t, "ops@example.org", cfg.PubMed.Email)
	assert.Equal(t, "ops@example.org", cfg.ORCID.Email)
	assert.Empty(t, cfg.Trials.APIKey)
}

func TestApplyKeepsConfiguredValues(t *testing.T) {
	cfg := types.SourcesConfig{PubMed: types.SourceConfig{APIKey: "from-config", Email: "cfg@example.org"}}
	Apply(&cfg, map[string]string{NCBIAPIKey: "from-file", ContactEmail: "file@example.org"})
	assert.Equal(t, "from-config", cfg.PubMed.APIKey)
	assert.Equal(t, "cfg@example.org", cfg.PubMed.Email)
	assert.Equal(t, "file@example.org", cfg.ORCID.Email)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
