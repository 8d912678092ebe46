package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"registrar/engine/actors"
	"registrar/engine/library"
	"registrar/messaging/comms"
	"registrar/state/identity"
)

// view-pending prints every pending identity in the configured storage.
func main() {
	conf := viper.New()
	if err := actors.InitConfig(conf); err != nil {
		library.LogCLI(err.Error(), 0)
		os.Exit(1)
	}
	library.SetLogLevel(2)
	ctx := context.Background()
	db, err := actors.OpenDatabase(ctx, conf)
	if err != nil {
		library.LogCLI(err.Error(), 0)
		os.Exit(1)
	}
	registry, err := identity.New(ctx, db, comms.New())
	if err != nil {
		db.Close()
		library.LogCLI(err.Error(), 0)
		os.Exit(1)
	}
	for _, ident := range registry.Identities() {
		b, err := json.MarshalIndent(ident, "", " ")
		if err != nil {
			library.LogCLI(err.Error(), 1)
			continue
		}
		fmt.Printf("\n--------- %s -----------\n%s\n", ident.Address(), b)
	}
	db.Close()
}
