package actors

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"registrar/engine/database"
)

func testConfig(t *testing.T) *viper.Viper {
	t.Helper()
	t.Setenv("REGISTRAR_ROOTDIR", t.TempDir())
	conf := viper.New()
	require.NoError(t, InitConfig(conf))
	return conf
}

func TestInitConfigDefaultsAndFile(t *testing.T) {
	conf := testConfig(t)
	assert.Equal(t, "file", conf.GetString("storage.backend"))
	assert.Equal(t, 3, conf.GetInt("adapters.deliveryAttempts"))
	assert.Equal(t, time.Minute, conf.GetDuration("registry.sweepInterval"))
	_, err := os.Stat(filepath.Join(conf.GetString("rootDir"), "config.yaml"))
	assert.NoError(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("REGISTRAR_WATCHER_URL", "ws://watcher:9000")
	t.Setenv("REGISTRAR_REGISTRY_CHALLENGETTL", "2h")
	conf := testConfig(t)
	assert.Equal(t, "ws://watcher:9000", conf.GetString("watcher.url"))
	assert.Equal(t, 2*time.Hour, conf.GetDuration("registry.challengeTTL"))
}

func TestConfigFileIsRead(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml"), []byte("storage:\n  backend: memory\n"), 0644))
	t.Setenv("REGISTRAR_ROOTDIR", root)
	conf := viper.New()
	require.NoError(t, InitConfig(conf))
	assert.Equal(t, "memory", conf.GetString("storage.backend"))
}

func TestOpenDatabase(t *testing.T) {
	ctx := context.Background()
	conf := testConfig(t)
	for _, backend := range []string{"memory", "file", "sqlite"} {
		conf.Set("storage.backend", backend)
		db, err := OpenDatabase(ctx, conf)
		require.NoError(t, err, backend)
		require.NoError(t, db.Scope(database.PendingIdentities).Put(ctx, "k", []byte("v")), backend)
		require.NoError(t, db.Close())
	}
	conf.Set("storage.backend", "tape")
	_, err := OpenDatabase(ctx, conf)
	assert.Error(t, err)
}

func TestInRootDir(t *testing.T) {
	conf := viper.New()
	conf.Set("rootDir", "/srv/registrar")
	conf.Set("a", "data")
	conf.Set("b", "/var/lib/db")
	assert.Equal(t, "/srv/registrar/data", InRootDir(conf, "a"))
	assert.Equal(t, "/var/lib/db", InRootDir(conf, "b"))
}
