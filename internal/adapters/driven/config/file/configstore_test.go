package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

func TestNewConfigStore_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	store, err := NewConfigStore(path)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, path, store.Path())
}

func TestNewConfigStore_DefaultPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".tankfinder", "config.toml"), store.Path())
}

func TestConfigStore_Load_NonExistent(t *testing.T) {
	store, err := NewConfigStore(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	settings, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), settings)
}

func TestConfigStore_Load_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[crawl]
roots = ['P:\JOBS', 'P:\ARCHIVES']
workers = 8
watch_debounce = "5s"

[ignore]
ext = [".tmp"]

[detectors.compress]
name_tokens_any = ["cw", "compress"]

[text]
pdf_path_allow_tokens = ["issued"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	store, err := NewConfigStore(path)
	require.NoError(t, err)

	settings, err := store.Load()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, []string{`P:\JOBS`, `P:\ARCHIVES`}, settings.Crawl.Roots)
	assert.Equal(t, 8, settings.Crawl.Workers)
	assert.Equal(t, 5*time.Second, settings.Crawl.WatchDebounce.Std())
	assert.Equal(t, defaults.Crawl.MaxPathLength, settings.Crawl.MaxPathLength, "unset keys keep defaults")
	assert.Equal(t, []string{".tmp"}, settings.Ignore.Ext)
	assert.Equal(t, []string{"cw", "compress"}, settings.Detectors["compress"].NameTokensAny)
	assert.Nil(t, settings.Detectors["compress"].ExtAny)
	assert.Equal(t, []string{"issued"}, settings.Text.PDFAllowTokens)
	assert.Equal(t, defaults.Text.MaxChars, settings.Text.MaxChars)
}

func TestConfigStore_Load_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[crawl\nroots = "), 0o600))
	store, err := NewConfigStore(path)
	require.NoError(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigStore_Load_ReadFileError(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	_, err = store.Load()
	assert.Error(t, err, "a directory cannot be read as a file")
}

func TestConfigStore_SaveReload_PreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.toml")
	store, err := NewConfigStore(path)
	require.NoError(t, err)

	settings := domain.DefaultAppSettings()
	settings.Crawl.Roots = []string{"/srv/jobs"}
	settings.Crawl.QuotesRoots = []string{"/srv/quotes"}
	settings.Crawl.WatchDebounce = domain.Duration(750 * time.Millisecond)
	settings.Scheduler.IndexInterval = domain.Duration(90 * time.Minute)
	settings.Detectors = map[string]domain.DetectorRule{
		"ametank": {ExtAny: []string{".mdl"}},
	}
	require.NoError(t, store.Save(settings))

	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/jobs"}, reloaded.Crawl.Roots)
	assert.Equal(t, []string{"/srv/quotes"}, reloaded.Crawl.QuotesRoots)
	assert.Equal(t, 750*time.Millisecond, reloaded.Crawl.WatchDebounce.Std())
	assert.Equal(t, settings.Crawl.JobIDPattern, reloaded.Crawl.JobIDPattern)
	assert.Equal(t, settings.Scheduler, reloaded.Scheduler)
	assert.Equal(t, []string{".mdl"}, reloaded.Detectors["ametank"].ExtAny)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	store, err := NewConfigStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(domain.DefaultAppSettings()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	store, err := NewConfigStore(path)
	require.NoError(t, err)

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), settings)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	require.NoError(t, store.Save(domain.DefaultAppSettings()))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.Load()
		}()
		go func() {
			defer wg.Done()
			_ = store.Save(domain.DefaultAppSettings())
		}()
	}
	wg.Wait()

	_, err = store.Load()
	assert.NoError(t, err)
}
