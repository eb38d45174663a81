package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearFennecEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.ObjectStore.Backend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "clip", cfg.VisualModel.Model)
	assert.Equal(t, "/v1/embeddings", cfg.VisualModel.Path)
	assert.Nil(t, cfg.WatchFoldersEnv)
	assert.Equal(t, float64(30), cfg.ModelNotReadyBackoff.Seconds())
}

func TestLoad_WatchFoldersSplit(t *testing.T) {
	clearFennecEnv(t)
	t.Setenv("FENNEC_WATCH_FOLDERS", "/media/movies, /media/shows ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/movies", "/media/shows"}, cfg.WatchFoldersEnv)
}

func TestLoad_S3BackendRequiresBucket(t *testing.T) {
	clearFennecEnv(t)
	t.Setenv("FENNEC_OBJECTSTORE_BACKEND", "s3")

	_, err := Load()
	assert.Error(t, err)
}

func clearFennecEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				key := e[:i]
				if len(key) >= 7 && key[:7] == "FENNEC_" {
					t.Setenv(key, "")
					os.Unsetenv(key)
				}
				break
			}
		}
	}
}
