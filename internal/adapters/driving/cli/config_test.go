package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

func TestConfigPathCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := runCLI(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, ts.config)
}

func TestConfigInitCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := runCLI(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+ts.config)

	data, err := os.ReadFile(ts.config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "job_id_pattern")

	_, err = runCLI(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runCLI(t, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigShowCmd(t *testing.T) {
	ts := setupTestServices(t)
	require.NoError(t, os.WriteFile(ts.config, []byte("[crawl]\nroots = ['/srv/jobs']\nworkers = 9\n"), 0o600))

	out, err := runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "/srv/jobs")
	assert.Contains(t, out, "workers = 9")
	assert.Contains(t, out, "watch_debounce = '2s'")

	out, err = runCLI(t, "config", "show", "--defaults")
	require.NoError(t, err)
	assert.NotContains(t, out, "/srv/jobs")
	assert.Contains(t, out, "workers = 4")
}

func TestConfigValidateCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := runCLI(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	require.NoError(t, os.WriteFile(ts.config, []byte("[crawl]\nworkers = 0\n"), 0o600))
	_, err = runCLI(t, "config", "validate")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, ExitUsage, ExitCode(err))

	require.NoError(t, os.WriteFile(ts.config, []byte("not = [toml"), 0o600))
	_, err = runCLI(t, "config", "validate")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
