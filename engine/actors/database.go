package actors

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"registrar/engine/database"
	"registrar/engine/database/redisdb"
	"registrar/engine/database/sqlitedb"
)

// OpenDatabase opens the storage backend named by storage.backend.
func OpenDatabase(ctx context.Context, conf *viper.Viper) (database.Database, error) {
	switch backend := conf.GetString("storage.backend"); backend {
	case "memory":
		return database.NewMemory(), nil
	case "file":
		return database.NewFlatFile(InRootDir(conf, "storage.flatFileDir"))
	case "redis":
		return redisdb.Open(ctx, conf.GetString("storage.redisURL"), conf.GetString("storage.redisPrefix"))
	case "sqlite":
		return sqlitedb.Open(InRootDir(conf, "storage.sqlitePath"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
