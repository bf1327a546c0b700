package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mojocode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("API_ADDR", "")
	t.Setenv("COMMAND_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, "./db/migrations", cfg.MigrationsDir)
	assert.Equal(t, 2*time.Minute, cfg.CommandTimeout)
	assert.Equal(t, 5*time.Minute, cfg.AuthCacheTTL)
	assert.Equal(t, "github.com", cfg.GitHubBaseDomain)
}

func TestLoadFileValuesAreDefaultsForEnvironment(t *testing.T) {
	path := writeConfigFile(t, `
API_ADDR: ":9000"
workspace_dir: /srv/workspace
OPENAI_TIMEOUT_SECONDS: 15
COMMAND_TIMEOUT: 45s
MEILI_URL:
`)
	t.Setenv(FileEnv, path)
	t.Setenv("API_ADDR", ":9100")
	t.Setenv("WORKSPACE_DIR", "")
	t.Setenv("OPENAI_TIMEOUT_SECONDS", "")
	t.Setenv("COMMAND_TIMEOUT", "")
	t.Setenv("MEILI_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Addr, "environment wins over the file")
	assert.Equal(t, "/srv/workspace", cfg.WorkspaceDir)
	assert.Equal(t, 15*time.Second, cfg.OpenAITimeout)
	assert.Equal(t, 45*time.Second, cfg.CommandTimeout)
	assert.Empty(t, cfg.MeiliURL)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	t.Setenv(FileEnv, writeConfigFile(t, "API_ADDR: [unterminated"))
	_, err := Load()
	require.Error(t, err)

	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	require.Error(t, err)
}

func TestDurationParsing(t *testing.T) {
	src := source{file: map[string]string{"A": "30", "B": "1m30s", "C": "soon", "D": "-5s"}}
	assert.Equal(t, 30*time.Second, src.getenvDuration("A", time.Second))
	assert.Equal(t, 90*time.Second, src.getenvDuration("B", time.Second))
	assert.Equal(t, time.Second, src.getenvDuration("C", time.Second))
	assert.Equal(t, time.Second, src.getenvDuration("D", time.Second))
	assert.Equal(t, 7, src.getenvInt("MISSING", 7))
}

func TestGitEnvCarriesIdentity(t *testing.T) {
	cfg := Config{GitAuthorName: "Bot", GitAuthorEmail: "bot@example.com"}
	env := cfg.GitEnv()
	assert.Contains(t, env, "GIT_AUTHOR_NAME=Bot")
	assert.Contains(t, env, "GIT_COMMITTER_EMAIL=bot@example.com")
	assert.Contains(t, env, "GIT_TERMINAL_PROMPT=0")
}

func TestValidateServe(t *testing.T) {
	cfg := Config{AuthProviderURL: "https://auth.example", SecretsKey: "a-private-key"}
	require.NoError(t, cfg.ValidateServe())

	noAuth := cfg
	noAuth.AuthProviderURL = " "
	assert.ErrorContains(t, noAuth.ValidateServe(), "AUTH_PROVIDER_URL")

	devKey := cfg
	devKey.SecretsKey = DevSecretsKey
	assert.ErrorContains(t, devKey.ValidateServe(), "SECRETS_KEY")

	emptyKey := cfg
	emptyKey.SecretsKey = ""
	assert.ErrorContains(t, emptyKey.ValidateServe(), "SECRETS_KEY")
}
