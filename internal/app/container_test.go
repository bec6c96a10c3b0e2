package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/infrastructure/history"
)

func TestBuildContainerWritesDefaultConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	var stderr bytes.Buffer

	c, err := BuildContainer(context.Background(), Options{
		ConfigPath: "/conf/config.yaml",
		Fs:         fs,
		Stderr:     &stderr,
	})
	require.NoError(t, err)
	defer c.Close()

	exists, err := afero.Exists(fs, "/conf/config.yaml")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NotNil(t, c.Session)
	assert.Equal(t, domain.ProviderOpenAI, c.Config.Generator.Provider)
	assert.IsType(t, &history.TextLog{}, c.History)
	assert.Same(t, c.Credentials, c.Session.Credentials)
}

func TestBuildContainerSQLiteHistory(t *testing.T) {
	fs := afero.NewMemMapFs()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	config := "generator:\n  provider: ollama\nhistory:\n  backend: sqlite\n  path: " + dbPath + "\n"
	require.NoError(t, afero.WriteFile(fs, "/conf/config.yaml", []byte(config), 0o600))

	c, err := BuildContainer(context.Background(), Options{ConfigPath: "/conf/config.yaml", Fs: fs, Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	assert.IsType(t, &history.SQLiteLog{}, c.History)
	assert.Equal(t, dbPath, c.History.Path())
	assert.NoError(t, c.Close())
}

func TestBuildContainerRejectsInvalidConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/conf/config.yaml", []byte("generator: [unterminated"), 0o600))

	_, err := BuildContainer(context.Background(), Options{ConfigPath: "/conf/config.yaml", Fs: fs, Stderr: &bytes.Buffer{}})
	require.Error(t, err)

	var cfgErr *domain.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestBuildContainerRejectsBrokenSystemTemplate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/conf/config.yaml", []byte("prompt:\n  system: \"{{ .Nope \"\n"), 0o600))

	_, err := BuildContainer(context.Background(), Options{ConfigPath: "/conf/config.yaml", Fs: fs, Stderr: &bytes.Buffer{}})
	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "prompt.system", cfgErr.Op)
}
