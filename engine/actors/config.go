package actors

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"registrar/engine/library"
)

// InitConfig sets up our Viper config object. Environment variables prefixed with
// REGISTRAR_ override both defaults and the config file, e.g. REGISTRAR_WATCHER_URL.
func InitConfig(config *viper.Viper) error {
	config.SetEnvPrefix("registrar")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	config.SetDefault("rootDir", filepath.Join(homeDir, "registrar"))
	if err := initRootDir(config); err != nil {
		return err
	}
	configFile := filepath.Join(config.GetString("rootDir"), "config.yaml")
	config.SetConfigType("yaml")
	config.SetConfigFile(configFile)
	if err := config.ReadInConfig(); err != nil {
		library.LogCLI(err.Error(), 4)
	}

	config.SetDefault("logLevel", 4)
	config.SetDefault("watcher.url", "ws://127.0.0.1:8000/api/account_watcher")
	config.SetDefault("watcher.origin", "http://localhost/")
	config.SetDefault("watcher.reconnectMaxInterval", 30*time.Second)

	config.SetDefault("storage.backend", "file")
	config.SetDefault("storage.flatFileDir", "data")
	config.SetDefault("storage.redisURL", "redis://127.0.0.1:6379/0")
	config.SetDefault("storage.redisPrefix", "registrar:")
	config.SetDefault("storage.sqlitePath", "registrar.db")

	config.SetDefault("registry.mergePolicy", "prefer_incoming")
	// zero keeps challenges valid until judged
	config.SetDefault("registry.challengeTTL", time.Duration(0))
	config.SetDefault("registry.sweepInterval", time.Minute)

	config.SetDefault("verifier.queueSize", 256)
	config.SetDefault("adapters.pollInterval", 10*time.Second)
	config.SetDefault("adapters.deliveryAttempts", 3)
	config.SetDefault("adapters.nostr.enabled", false)
	config.SetDefault("adapters.nostr.relays", []string{"wss://nos.lol", "wss://relay.damus.io"})
	config.SetDefault("adapters.nostr.privateKey", "")
	config.SetDefault("adapters.nostr.walletFile", "wallet.json")

	config.SetDefault("metrics.addr", "127.0.0.1:9100")
	config.SetDefault("eventlog.brokers", []string{})
	config.SetDefault("eventlog.topic", "registrar.events")
	config.SetDefault("eventlog.ttl", time.Duration(0))

	// Create the config file on first run so operators have something to edit
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		if err := config.WriteConfigAs(configFile); err != nil {
			return fmt.Errorf("write %s: %w", configFile, err)
		}
	}
	return nil
}

func initRootDir(conf *viper.Viper) error {
	return os.MkdirAll(conf.GetString("rootDir"), 0755)
}

// InRootDir resolves a configured path relative to rootDir, leaving absolute paths alone.
func InRootDir(conf *viper.Viper, key string) string {
	p := conf.GetString(key)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(conf.GetString("rootDir"), p)
}
